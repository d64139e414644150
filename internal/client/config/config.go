// Package config handles configuration for the client: defaults, JSON
// overlay and command-line flags.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the CareLink client.
//
// DeviceID identifies this installation to the server; refresh tokens are
// bound to it. SessionFile is where the token snapshot is persisted.
type Config struct {
	ServerBaseURL  string
	DeviceID       string
	SessionFile    string
	RequestTimeout time.Duration
	ExpiryBuffer   time.Duration
	OfflineGrace   time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.DeviceID = ""
	c.SessionFile = defaultSessionFile()
	c.RequestTimeout = 15 * time.Second
	c.ExpiryBuffer = 60 * time.Second
	c.OfflineGrace = 7 * 24 * time.Hour
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".carelink-session.json"
	}
	return filepath.Join(home, ".carelink", "session.json")
}
