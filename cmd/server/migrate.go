package main

import (
	"errors"
	"fmt"

	"github.com/UkralStul/social-feed-service/internal/config"
	"github.com/UkralStul/social-feed-service/internal/storage/postgres"
	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema (postgres storage only)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := initLogger(cfg)
		if cfg.Storage != config.StoragePostgres {
			return errors.New("migrate requires postgres storage")
		}

		store, err := postgres.New(postgres.Options{DSN: cfg.DatabaseURL, LogLevel: logger.Info})
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema is up to date", "dsn", redactDSN(cfg.DatabaseURL))
		return nil
	},
}
