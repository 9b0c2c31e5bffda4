// Package config holds runtime settings for the sync client.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the sync client.
//
// AutoSyncInterval ≤ 0 disables the recurring timer. DebounceQuiet is the
// quiet period after a local mutation before a coalesced sync fires.
type Config struct {
	ServerURL     string
	DatabasePath  string
	ImageCacheDir string

	AutoSyncInterval time.Duration
	DebounceQuiet    time.Duration
	HTTPTimeout      time.Duration
	Enabled          bool

	// Session credential, consumed as an opaque bearer token.
	Token    string
	UserID   string
	Username string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	dir := defaultDir()
	c.ServerURL = "http://127.0.0.1:8080"
	c.DatabasePath = filepath.Join(dir, "closet.db")
	c.ImageCacheDir = filepath.Join(dir, "images")
	c.AutoSyncInterval = 5 * time.Minute
	c.DebounceQuiet = 3 * time.Second
	c.HTTPTimeout = 30 * time.Second
	c.Enabled = true
}

// LoadConfig constructs a Config: defaults, then the JSON file at path (if
// path is "" the default location is used; a missing file is not an error).
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(defaultDir(), "config.json")
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".closet-sync")
}
