package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"soundscript/internal/catalog"
	"soundscript/internal/config"
	"soundscript/internal/database"
	"soundscript/internal/server"
	"soundscript/internal/stats"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the player to browsers on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}

			cat, extractor, err := loadCatalog(cfg, logger)
			if err != nil {
				return err
			}
			if cat.Size() == 0 {
				logger.WithField("supported_formats", cfg.Library.SupportedFormats).Warn("Library has no songs")
			}

			db, store, err := openStats(cfg, cat, logger, statsOptions(cfg))
			if err != nil {
				return err
			}
			defer db.Close()

			musicServer := server.NewMusicServer(server.Deps{
				Config:    cfg,
				Logger:    logger,
				Catalog:   cat,
				Store:     store,
				DB:        db,
				Extractor: extractor,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := musicServer.Start(ctx); err != nil {
				return err
			}
			logger.Info("Received shutdown signal")
			return nil
		},
	}
}

func statsOptions(cfg *config.Config) stats.Options {
	return stats.Options{
		Debounce: time.Duration(cfg.Stats.FlushDebounceMs) * time.Millisecond,
		Interval: time.Duration(cfg.Stats.FlushIntervalSeconds) * time.Second,
	}
}

// openStats opens the database and loads the stats store on top of it. The
// caller closes the database after the store.
func openStats(cfg *config.Config, cat *catalog.Catalog, logger *logrus.Logger, opts stats.Options) (*database.Database, *stats.Store, error) {
	db, err := database.NewDatabase(cfg.Database.Path, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing database: %w", err)
	}

	opts.Logger = logger
	store := stats.Open(cat.Size(), stats.NewItemBackend(db, cfg.Database.StorageKey), opts)
	return db, store, nil
}
