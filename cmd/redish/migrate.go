package main

import (
	"redish/server/internal/store/postgres"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errNoDatabase
			}
			return postgres.Migrate(cfg.DatabaseURL, logrus.StandardLogger())
		},
	}
}
