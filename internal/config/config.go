package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment overrides, applied after the file is decoded.
const (
	EnvConfig  = "SOUNDSCRIPT_CONFIG"
	EnvPort    = "SOUNDSCRIPT_PORT"
	EnvLibrary = "SOUNDSCRIPT_LIBRARY"
	EnvDB      = "SOUNDSCRIPT_DB"
)

// Library sources.
const (
	SourceManifest = "manifest"
	SourceScan     = "scan"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Library  LibraryConfig  `toml:"library"`
	Stats    StatsConfig    `toml:"stats"`
	Player   PlayerConfig   `toml:"player"`
	Ranking  RankingConfig  `toml:"ranking"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	StaticDir   string `toml:"static_dir"`
	EnableCORS  bool   `toml:"enable_cors"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// DatabaseConfig contains the stats database configuration
type DatabaseConfig struct {
	Path       string `toml:"path"`
	StorageKey string `toml:"storage_key"`
}

// LibraryConfig describes where the catalog comes from
type LibraryConfig struct {
	Path             string   `toml:"path"`
	Source           string   `toml:"source"`
	SupportedFormats []string `toml:"supported_formats"`
	WatchForChanges  bool     `toml:"watch_for_changes"`
	MediaBase        string   `toml:"media_base"`
}

// StatsConfig contains the flush cadence
type StatsConfig struct {
	FlushDebounceMs      int `toml:"flush_debounce_ms"`
	FlushIntervalSeconds int `toml:"flush_interval_seconds"`
}

// PlayerConfig tunes playback and play counting
type PlayerConfig struct {
	InitialVolume       float64 `toml:"initial_volume"`
	CountCeilingSeconds float64 `toml:"count_ceiling_seconds"`
	LongTrackSeconds    float64 `toml:"long_track_seconds"`
	CountRatio          float64 `toml:"count_ratio"`
	SampleWindowSeconds float64 `toml:"sample_window_seconds"`
}

// RankingConfig contains ranked list configuration
type RankingConfig struct {
	Size int `toml:"size"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	File           string `toml:"file"`
	RequestLogging bool   `toml:"request_logging"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Host:        "127.0.0.1",
			StaticDir:   "./static",
			EnableCORS:  true,
			ReadTimeout: 30,
		},
		Database: DatabaseConfig{
			Path:       "./soundscript.db",
			StorageKey: "musicStats",
		},
		Library: LibraryConfig{
			Path:             "./library",
			Source:           SourceManifest,
			SupportedFormats: []string{".mp3", ".flac", ".wav", ".m4a"},
			WatchForChanges:  true,
			MediaBase:        "/media/",
		},
		Stats: StatsConfig{
			FlushDebounceMs:      1000,
			FlushIntervalSeconds: 60,
		},
		Player: PlayerConfig{
			InitialVolume:       1,
			CountCeilingSeconds: 120,
			LongTrackSeconds:    150,
			CountRatio:          0.8,
			SampleWindowSeconds: 0.5,
		},
		Ranking: RankingConfig{
			Size: 36,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			File:           "",
			RequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from a TOML file, creating it with defaults
// when missing, then applies environment overrides (including a .env file in
// the working directory).
func LoadConfig(configPath string) (*Config, error) {
	// Missing .env is fine
	_ = godotenv.Load()

	if env := os.Getenv(EnvConfig); env != "" {
		configPath = env
	}

	// Start with defaults
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides file values with the SOUNDSCRIPT_* environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvPort); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv(EnvLibrary); v != "" {
		c.Library.Path = v
	}
	if v := os.Getenv(EnvDB); v != "" {
		c.Database.Path = v
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# Soundscript Player Configuration
# Library layout, stats storage and play counting options.
# Environment variables SOUNDSCRIPT_PORT, SOUNDSCRIPT_LIBRARY and SOUNDSCRIPT_DB override these values.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	// Validate database config
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.StorageKey == "" {
		return fmt.Errorf("database storage key cannot be empty")
	}

	// Validate library config
	if c.Library.Path == "" {
		return fmt.Errorf("library path cannot be empty")
	}
	if c.Library.Source != SourceManifest && c.Library.Source != SourceScan {
		return fmt.Errorf("invalid library source: %s (must be manifest or scan)", c.Library.Source)
	}
	if c.Library.Source == SourceScan && len(c.Library.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}
	if !strings.HasPrefix(c.Library.MediaBase, "/") {
		return fmt.Errorf("library media base must be an absolute URL path")
	}

	// Validate stats config
	if c.Stats.FlushDebounceMs <= 0 {
		return fmt.Errorf("stats flush debounce must be positive")
	}

	// Validate player config
	if c.Player.InitialVolume <= 0 || c.Player.InitialVolume > 1 {
		return fmt.Errorf("player initial volume must be in (0, 1]")
	}
	if c.Player.CountRatio <= 0 || c.Player.CountRatio > 1 {
		return fmt.Errorf("player count ratio must be in (0, 1]")
	}
	if c.Player.CountCeilingSeconds <= 0 || c.Player.LongTrackSeconds <= 0 || c.Player.SampleWindowSeconds <= 0 {
		return fmt.Errorf("player thresholds must be positive")
	}

	if c.Ranking.Size < 1 {
		return fmt.Errorf("ranking size must be at least 1")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// IsFormatSupported checks if an audio format is supported
func (c *Config) IsFormatSupported(format string) bool {
	return slices.Contains(c.Library.SupportedFormats, strings.ToLower(format))
}
