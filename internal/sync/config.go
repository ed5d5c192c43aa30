// ABOUTME: Sync credentials for the lift sync server and realtime feed.
// ABOUTME: Stored as JSON next to config.yaml with owner-only permissions.
package sync

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Config stores sync credentials.
type Config struct {
	Server      string `json:"server"`
	RealtimeURL string `json:"realtime_url,omitempty"`
	Token       string `json:"token"`
	DeviceID    string `json:"device_id"`
}

// ConfigDir returns the XDG config directory for lift.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lift")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "lift")
}

// ConfigPath returns the path to the sync credentials file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "sync.json")
}

// LoadConfig loads sync credentials from disk. A missing file yields an
// unconfigured Config with a fresh device id.
func LoadConfig() (*Config, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{DeviceID: GenerateDeviceID()}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = GenerateDeviceID()
	}
	return &cfg, nil
}

// SaveConfig persists sync credentials to disk.
func SaveConfig(cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(), 0750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(), data, 0600)
}

// IsConfigured returns true if a sync server and token are set.
func (c *Config) IsConfigured() bool {
	return c.Server != "" && c.Token != ""
}

// GenerateDeviceID creates a new unique device ID.
func GenerateDeviceID() string {
	return uuid.NewString()
}

// ClearConfig removes the sync credentials file.
func ClearConfig() error {
	path := ConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(path)
}
