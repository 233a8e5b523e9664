package cli

import (
	"github.com/spf13/cobra"
)

func NewMigrateCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, err := bootstrap(root)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if err := migrate(db); err != nil {
				return err
			}
			log.Info("✅ Database migrated")
			return nil
		},
	}
}
