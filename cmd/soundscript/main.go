package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"soundscript/internal/catalog"
	"soundscript/internal/config"
	"soundscript/internal/metadata"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "soundscript",
		Short:         "Music player with ranked queues and persistent listening stats",
		Version:       appVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.toml",
		"path to the TOML configuration (overridden by "+config.EnvConfig+")")

	root.AddCommand(
		serveCmd(&configPath),
		rankCmd(&configPath),
		statsCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "unknown"
	}
	return bi.Main.Version
}

// setup loads the configuration and builds the logger it describes.
func setup(configPath string) (*config.Config, *logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading configuration: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Logging.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening log file: %w", err)
		}
		logger.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	return cfg, logger, nil
}

// loadCatalog builds the catalog from the configured library source. The
// extractor is nil for manifest libraries.
func loadCatalog(cfg *config.Config, logger *logrus.Logger) (*catalog.Catalog, *metadata.Extractor, error) {
	if _, err := os.Stat(cfg.Library.Path); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("library directory %s does not exist", cfg.Library.Path)
	}

	switch cfg.Library.Source {
	case config.SourceScan:
		extractor := metadata.NewExtractor(cfg.Library.SupportedFormats, logger)
		cat, err := catalog.Scan(cfg.Library.Path, cfg.Library.MediaBase, extractor, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("error scanning library: %w", err)
		}
		return cat, extractor, nil
	default:
		cat, err := catalog.LoadManifest(cfg.Library.Path, cfg.Library.MediaBase, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("error loading library manifest: %w", err)
		}
		return cat, nil, nil
	}
}
