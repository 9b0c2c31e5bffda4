package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// jsonConfig is a DTO used exclusively for JSON (un)marshalling. Durations
// are whole seconds so the file stays hand-editable.
type jsonConfig struct {
	ServerURL        string `json:"server_url,omitempty"`
	DatabasePath     string `json:"database_path,omitempty"`
	ImageCacheDir    string `json:"image_cache_dir,omitempty"`
	AutoSyncInterval *int   `json:"auto_sync_interval_sec,omitempty"`
	DebounceQuiet    *int   `json:"debounce_quiet_sec,omitempty"`
	HTTPTimeout      *int   `json:"http_timeout_sec,omitempty"`
	Enabled          *bool  `json:"enabled,omitempty"`
	Token            string `json:"token,omitempty"`
	UserID           string `json:"user_id,omitempty"`
	Username         string `json:"username,omitempty"`
}

// parseJSON overlays cfg with values from the JSON file at path. Absent
// fields keep their current values. A missing file is silently skipped so
// first runs work without any setup.
func parseJSON(cfg *Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.ImageCacheDir != "" {
		cfg.ImageCacheDir = jc.ImageCacheDir
	}
	if jc.AutoSyncInterval != nil {
		cfg.AutoSyncInterval = time.Duration(*jc.AutoSyncInterval) * time.Second
	}
	if jc.DebounceQuiet != nil {
		cfg.DebounceQuiet = time.Duration(*jc.DebounceQuiet) * time.Second
	}
	if jc.HTTPTimeout != nil {
		cfg.HTTPTimeout = time.Duration(*jc.HTTPTimeout) * time.Second
	}
	if jc.Enabled != nil {
		cfg.Enabled = *jc.Enabled
	}
	cfg.Token = jc.Token
	cfg.UserID = jc.UserID
	cfg.Username = jc.Username
	return nil
}

// Save writes cfg to the JSON file at path ("" = default location),
// creating the directory if needed. Used by `login` to persist the session
// credential.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	auto := int(c.AutoSyncInterval.Seconds())
	quiet := int(c.DebounceQuiet.Seconds())
	timeout := int(c.HTTPTimeout.Seconds())
	enabled := c.Enabled
	jc := jsonConfig{
		ServerURL:        c.ServerURL,
		DatabasePath:     c.DatabasePath,
		ImageCacheDir:    c.ImageCacheDir,
		AutoSyncInterval: &auto,
		DebounceQuiet:    &quiet,
		HTTPTimeout:      &timeout,
		Enabled:          &enabled,
		Token:            c.Token,
		UserID:           c.UserID,
		Username:         c.Username,
	}

	data, err := json.MarshalIndent(jc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
