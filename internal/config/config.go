// ABOUTME: lift configuration loaded through viper from YAML, env and defaults.
// ABOUTME: Covers data location, logging, sync backend, realtime and log back-fill.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harperreed/lift/internal/storage"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LIFT_SYNC_TIMEOUT.
const EnvPrefix = "LIFT"

type (
	// Config stores lift tool configuration.
	Config struct {
		// DataDir is the root directory for data storage. lift.db lives here.
		// Supports ~ expansion for home directory. Defaults to ~/.local/share/lift.
		DataDir string `mapstructure:"data_dir"`

		Log      Log      `mapstructure:"log"`
		Sync     Sync     `mapstructure:"sync"`
		Charm    Charm    `mapstructure:"charm"`
		Realtime Realtime `mapstructure:"realtime"`
		Logs     Logs     `mapstructure:"logs"`
	}

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // text, json
		File   string `mapstructure:"file"`
	}

	Sync struct {
		// Backend selects the remote: "http" (sync server), "charm" (Charm KV) or "none".
		Backend  string        `mapstructure:"backend"`
		Timeout  time.Duration `mapstructure:"timeout"`
		Schedule string        `mapstructure:"schedule"` // cron spec for background sync
		AutoSync bool          `mapstructure:"auto_sync"`
	}

	Charm struct {
		Host string `mapstructure:"host"`
		DB   string `mapstructure:"db"`
	}

	Realtime struct {
		Enabled      bool          `mapstructure:"enabled"`
		ReconnectMin time.Duration `mapstructure:"reconnect_min"`
		ReconnectMax time.Duration `mapstructure:"reconnect_max"`
		MaxAttempts  int           `mapstructure:"max_attempts"` // retries before dangling refs are dropped
	}

	Logs struct {
		MaxBackfillDays int    `mapstructure:"max_backfill_days"`
		Schedule        string `mapstructure:"schedule"`
	}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("sync.backend", "http")
	v.SetDefault("sync.timeout", 30*time.Second)
	v.SetDefault("sync.schedule", "*/15 * * * *")
	v.SetDefault("sync.auto_sync", true)
	v.SetDefault("charm.host", "charm.2389.dev")
	v.SetDefault("charm.db", "lift")
	v.SetDefault("realtime.enabled", true)
	v.SetDefault("realtime.reconnect_min", time.Second)
	v.SetDefault("realtime.reconnect_max", time.Minute)
	v.SetDefault("realtime.max_attempts", 5)
	v.SetDefault("logs.max_backfill_days", 31)
	v.SetDefault("logs.schedule", "5 0 * * *")
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "lift", "config.yaml")
}

// Load reads config from path (the default location when empty), then
// applies LIFT_* environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = GetConfigPath()
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Sync.Backend {
	case "http", "charm", "none":
	default:
		return fmt.Errorf("unknown sync backend: %q", c.Sync.Backend)
	}
	if c.Logs.MaxBackfillDays < 1 {
		return fmt.Errorf("logs.max_backfill_days must be positive, got %d", c.Logs.MaxBackfillDays)
	}
	return nil
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "lift.db")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
