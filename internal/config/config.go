// Package config holds all attendsync configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon configuration. Files may be JSON or YAML;
// missing fields fall back to DefaultConfig values.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel" yaml:"logLevel"`

	Store        StoreConfig        `json:"store" yaml:"store"`
	Remote       RemoteConfig       `json:"remote" yaml:"remote"`
	Connectivity ConnectivityConfig `json:"connectivity" yaml:"connectivity"`
	Sync         SyncConfig         `json:"sync" yaml:"sync"`
	Status       StatusConfig       `json:"status" yaml:"status"`
}

// StoreConfig selects and locates the durable queue store.
type StoreConfig struct {
	// Driver is "file" or "sqlite".
	Driver string `json:"driver" yaml:"driver"`
	// Dir holds the queue file (file driver) or the database (sqlite
	// driver).
	Dir string `json:"dir" yaml:"dir"`
}

// RemoteConfig points at the backend.
type RemoteConfig struct {
	BaseURL     string `json:"baseUrl" yaml:"baseUrl"`
	APIKey      string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	AccessToken string `json:"accessToken,omitempty" yaml:"accessToken,omitempty"`
}

// ConnectivityConfig tunes reachability detection.
type ConnectivityConfig struct {
	// Watcher is "http" (polling) or "websocket" (push).
	Watcher string `json:"watcher" yaml:"watcher"`
	// ProbeURL defaults to the remote base URL when empty.
	ProbeURL string `json:"probeUrl,omitempty" yaml:"probeUrl,omitempty"`
	// RealtimeURL is the websocket endpoint for the websocket watcher.
	RealtimeURL     string `json:"realtimeUrl,omitempty" yaml:"realtimeUrl,omitempty"`
	IntervalSeconds int    `json:"intervalSeconds" yaml:"intervalSeconds"`
}

// SyncConfig tunes the drain engine and queue manager.
type SyncConfig struct {
	RetentionDays int `json:"retentionDays" yaml:"retentionDays"`

	// Dedupe supersedes pending marks for the same
	// (student, subject, date) key at enqueue time. Off by default for
	// compatibility with clients that rely on remote uniqueness alone.
	Dedupe bool `json:"dedupe" yaml:"dedupe"`

	// CorruptPolicy is "fail" or "reset".
	CorruptPolicy string `json:"corruptPolicy" yaml:"corruptPolicy"`

	// IntervalMinutes schedules periodic safety-net drains. CronExpr,
	// when set, takes precedence.
	IntervalMinutes int    `json:"intervalMinutes" yaml:"intervalMinutes"`
	CronExpr        string `json:"cronExpr,omitempty" yaml:"cronExpr,omitempty"`
}

// StatusConfig configures the localhost status endpoint.
type StatusConfig struct {
	// Addr must stay loopback; the endpoint is for the local UI only.
	Addr string `json:"addr" yaml:"addr"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Store: StoreConfig{
			Driver: "file",
			Dir:    "./data",
		},
		Connectivity: ConnectivityConfig{
			Watcher:         "http",
			IntervalSeconds: 15,
		},
		Sync: SyncConfig{
			RetentionDays:   30,
			CorruptPolicy:   "fail",
			IntervalMinutes: 5,
		},
		Status: StatusConfig{
			Addr: "127.0.0.1:8642",
		},
	}
}

// Load reads config from a JSON or YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Store.Dir, 0750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

// Validate checks enum-valued fields.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "file", "sqlite":
	default:
		return fmt.Errorf("store.driver must be file or sqlite, got %q", c.Store.Driver)
	}
	switch c.Connectivity.Watcher {
	case "http", "websocket":
	default:
		return fmt.Errorf("connectivity.watcher must be http or websocket, got %q", c.Connectivity.Watcher)
	}
	switch c.Sync.CorruptPolicy {
	case "fail", "reset":
	default:
		return fmt.Errorf("sync.corruptPolicy must be fail or reset, got %q", c.Sync.CorruptPolicy)
	}
	if c.Connectivity.Watcher == "websocket" && c.Connectivity.RealtimeURL == "" {
		return fmt.Errorf("connectivity.realtimeUrl required for the websocket watcher")
	}
	return nil
}

// Save writes config to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
