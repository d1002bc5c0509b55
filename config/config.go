// Package config loads and persists the small set of user-tunable
// settings: the child command to run in each session, scrollback and
// timer sizes, and a worktree_base field. worktree_base is loaded and
// saved but nothing reads it: checkouts always live under
// ${HOME}/.hydra/worktrees/<repo-name>.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config is the on-disk, JSON-backed settings file.
type Config struct {
	Command          string   `json:"command"`
	Args             []string `json:"args"`
	MaxScrollback    int      `json:"max_scrollback"`
	BatchIntervalMS  int      `json:"batch_interval_ms"`
	PrefixTimeoutMS  int      `json:"prefix_timeout_ms"`
	SilenceMS        int      `json:"silence_ms"`
	WorktreeBase     string   `json:"worktree_base,omitempty"`
}

// Default returns the built-in settings used when no config file exists.
func Default() *Config {
	return &Config{
		Command:         "claude",
		Args:            nil,
		MaxScrollback:   5000,
		BatchIntervalMS: 8,
		PrefixTimeoutMS: 500,
		SilenceMS:       3000,
	}
}

// BatchInterval returns the configured PTY output coalescing window.
func (c *Config) BatchInterval() time.Duration {
	return time.Duration(c.BatchIntervalMS) * time.Millisecond
}

// PrefixTimeout returns the configured prefix-key timeout.
func (c *Config) PrefixTimeout() time.Duration {
	return time.Duration(c.PrefixTimeoutMS) * time.Millisecond
}

// SilenceDuration returns the configured working->waiting silence window.
func (c *Config) SilenceDuration() time.Duration {
	return time.Duration(c.SilenceMS) * time.Millisecond
}

// Path returns ${HOME}/.hydra/config.json.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".hydra", "config.json")
}

// Load reads the config file, falling back to Default() when it does not
// exist. Fields present in the file override the defaults; fields absent
// keep their default value since Load unmarshals onto a pre-populated
// Default().
func Load() (*Config, error) {
	path := Path()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to ${HOME}/.hydra/config.json, creating the
// directory if needed.
func (c *Config) Save() error {
	path := Path()
	if path == "" {
		return os.ErrNotExist
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
