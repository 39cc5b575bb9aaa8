package main

import (
	"github.com/fieldops/backend/internal/infrastructure/migration"
	"github.com/fieldops/backend/internal/infrastructure/persistence"
	"github.com/fieldops/backend/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
	}
	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := opts.logger(cfg)
			if err != nil {
				return err
			}
			db, err := persistence.NewDatabase(&cfg.Database)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Warn("failed to close database", zap.Error(err))
				}
			}()
			sqlDB, err := db.DB.DB()
			if err != nil {
				return err
			}
			m, err := migration.NewFromFS(sqlDB, migrations.FS, log)
			if err != nil {
				return err
			}
			defer m.Close()
			return m.Up()
		},
	})
	return migrate
}
