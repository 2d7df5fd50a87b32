package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"redish/server/internal/blob"
	"redish/server/internal/feeds"
	"redish/server/internal/httpapi"
	"redish/server/internal/linkmeta"
	"redish/server/internal/oauth"
	"redish/server/internal/observability"
	"redish/server/internal/session"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logrus.StandardLogger()

	st, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	blobs, err := blob.NewFileStore(cfg.DataDir)
	if err != nil {
		return err
	}
	log.WithField("root", blobs.Root()).Info("feed documents on local disk")

	var feedOpts []feeds.Option
	if cfg.EnrichLinks {
		feedOpts = append(feedOpts, feeds.WithTitleResolver(linkmeta.NewResolver(cfg.LinkFetchTimeout, log)))
	}

	sessions, err := session.NewManager(st, st, cfg.SessionSecret, cfg.SessionTTL, log)
	if err != nil {
		return err
	}
	if cfg.SessionSecret == "" {
		log.Warn("SESSION_SECRET not set; sessions will not survive a restart")
	}

	srv := httpapi.NewServer(cfg, httpapi.Deps{
		OAuth:    oauth.NewService(st, st, st, cfg.ClientOriginWeb, log),
		Feeds:    feeds.NewService(st, blobs, log, feedOpts...),
		Sessions: sessions,
		Metrics:  observability.NewMetrics(),
		Logger:   log,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("server is listening on %s", cfg.ListenAddr())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("server is shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(ctxShutdown)
}
