package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
}

func TestLoadConfigCreatesDefaultFile(t *testing.T) {
	t.Setenv(EnvConfig, "")
	path := filepath.Join(t.TempDir(), "conf", "soundscript.toml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Ranking.Size != 36 {
		t.Errorf("Expected default ranking size, got %d", cfg.Ranking.Size)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected config file to be written: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Soundscript Player Configuration") {
		t.Error("Expected header comment in generated file")
	}

	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Reloading generated config failed: %v", err)
	}
	if reloaded.Stats.FlushDebounceMs != 1000 || reloaded.Player.CountRatio != 0.8 {
		t.Errorf("Unexpected reloaded values %+v", reloaded)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv(EnvConfig, "")
	path := filepath.Join(t.TempDir(), "soundscript.toml")
	content := `
[server]
port = "9000"
host = "0.0.0.0"

[library]
path = "/srv/music"
source = "scan"
supported_formats = [".mp3"]
media_base = "/media/"

[ranking]
size = 10
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.GetAddress() != "0.0.0.0:9000" {
		t.Errorf("Unexpected address %s", cfg.GetAddress())
	}
	if cfg.Library.Source != SourceScan || cfg.Ranking.Size != 10 {
		t.Errorf("Unexpected library/ranking config %+v %+v", cfg.Library, cfg.Ranking)
	}
	// Untouched sections keep their defaults.
	if cfg.Database.StorageKey != "musicStats" {
		t.Errorf("Expected default storage key, got %q", cfg.Database.StorageKey)
	}
	if !cfg.IsFormatSupported(".MP3") || cfg.IsFormatSupported(".flac") {
		t.Error("Unexpected supported formats")
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "soundscript.toml")
	if err := DefaultConfig().SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	t.Setenv(EnvConfig, path)
	t.Setenv(EnvPort, "7777")
	t.Setenv(EnvLibrary, "/data/library")
	t.Setenv(EnvDB, filepath.Join(dir, "stats.db"))

	cfg, err := LoadConfig(filepath.Join(dir, "ignored.toml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != "7777" || cfg.Library.Path != "/data/library" || cfg.Database.Path != filepath.Join(dir, "stats.db") {
		t.Errorf("Environment overrides not applied: %+v", cfg)
	}
	if _, err := os.Stat(filepath.Join(dir, "ignored.toml")); !os.IsNotExist(err) {
		t.Error("Expected SOUNDSCRIPT_CONFIG to replace the given path")
	}
}

func TestLoadConfigRejectsInvalidFile(t *testing.T) {
	t.Setenv(EnvConfig, "")
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.toml")
	if err := os.WriteFile(broken, []byte("[server\nport="), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(broken); err == nil {
		t.Error("Expected parse error")
	}

	invalid := filepath.Join(dir, "invalid.toml")
	if err := os.WriteFile(invalid, []byte("[logging]\nlevel = \"loud\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(invalid); err == nil {
		t.Error("Expected validation error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"negative timeout", func(c *Config) { c.Server.ReadTimeout = -1 }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"empty storage key", func(c *Config) { c.Database.StorageKey = "" }},
		{"unknown source", func(c *Config) { c.Library.Source = "cloud" }},
		{"scan without formats", func(c *Config) {
			c.Library.Source = SourceScan
			c.Library.SupportedFormats = nil
		}},
		{"relative media base", func(c *Config) { c.Library.MediaBase = "media/" }},
		{"zero debounce", func(c *Config) { c.Stats.FlushDebounceMs = 0 }},
		{"loud volume", func(c *Config) { c.Player.InitialVolume = 1.5 }},
		{"zero ratio", func(c *Config) { c.Player.CountRatio = 0 }},
		{"zero window", func(c *Config) { c.Player.SampleWindowSeconds = 0 }},
		{"empty ranking", func(c *Config) { c.Ranking.Size = 0 }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
