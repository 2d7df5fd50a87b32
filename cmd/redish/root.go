package main

import (
	"errors"

	"redish/server/internal/config"
	"redish/server/internal/observability"
	"redish/server/internal/store"
	"redish/server/internal/store/memory"
	"redish/server/internal/store/postgres"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configFile string

var errNoDatabase = errors.New("DATABASE_URL is not set")

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "redish",
		Short:         "Save links to an RSS feed you can ignore from anywhere",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "env file to load instead of .env")

	root.AddCommand(serveCommand(), migrateCommand(), clientsCommand())
	return root
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, err
	}
	if err := observability.ConfigureLogging(cfg.LogLevel); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openStore picks postgres when DATABASE_URL is set and the in-memory store
// otherwise. The returned func releases the store.
func openStore(cfg config.Config, log logrus.FieldLogger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("using memory store")
		return memory.NewStore(), func() {}, nil
	}

	if err := postgres.Migrate(cfg.DatabaseURL, log); err != nil {
		return nil, nil, err
	}
	pg, err := postgres.NewStore(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("using postgres store")
	return pg, pg.Close, nil
}
