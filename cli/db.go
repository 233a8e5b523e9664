package cli

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"protocol-backend/config"
	"protocol-backend/logging"
	"protocol-backend/models"
)

// bootstrap loads config, builds the logger and opens the database.
func bootstrap(opts *RootOptions) (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, nil, err
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.MissingEnvFile {
		log.Warn("⚠️ No .env file found, reading environment variables directly")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, log, db, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
