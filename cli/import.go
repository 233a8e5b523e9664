package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"protocol-backend/services"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	File string
}

func NewImportCommand(root *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import emblems, badges, lore and timelines from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := loadSeedFile(opts.File)
			if err != nil {
				return err
			}

			_, log, db, err := bootstrap(root)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if err := migrate(db); err != nil {
				return err
			}

			emblems := services.NewEmblemService(db)
			seeder := services.NewSeedService(
				emblems,
				services.NewBadgeService(db),
				services.NewLoreService(db),
				services.NewTimelineService(db, emblems, log),
				log,
			)
			report, err := seeder.Import(cmd.Context(), seed)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "path to the YAML seed file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func loadSeedFile(path string) (services.SeedFile, error) {
	var seed services.SeedFile
	data, err := os.ReadFile(path)
	if err != nil {
		return seed, fmt.Errorf("failed to read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return seed, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return seed, nil
}
