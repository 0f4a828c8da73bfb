package main

import (
	"github.com/spf13/cobra"

	"github.com/joestump/card-runner/internal/config"
	"github.com/joestump/card-runner/internal/db"
	"github.com/joestump/card-runner/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{Format: cfg.Log.Format, Level: cfg.Log.Level})

			database, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if err := db.Migrate(database, cfg.DB.Driver); err != nil {
				return err
			}

			log.Info("migrations complete", "driver", cfg.DB.Driver)
			return nil
		},
	}
}
