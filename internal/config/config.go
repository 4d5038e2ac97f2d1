// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for chatrig.
//
// Configuration is read from ~/.chatrig/config.toml when present, with
// built-in defaults and CHATRIG_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete chatrig configuration.
type Config struct {
	// DefaultModel is used for new sessions when none is chosen
	DefaultModel string `toml:"default_model"`

	Ollama  OllamaConfig  `toml:"ollama"`
	Storage StorageConfig `toml:"storage"`
	Chat    ChatConfig    `toml:"chat"`
}

// OllamaConfig configures the connection to the local server.
type OllamaConfig struct {
	// BaseURL of the Ollama API (default: http://127.0.0.1:11434)
	BaseURL string `toml:"base_url"`

	// TimeoutSeconds bounds non-streaming requests (default: 30)
	TimeoutSeconds int `toml:"timeout_seconds"`

	// ReadyTimeoutSeconds bounds the startup readiness poll (default: 15)
	ReadyTimeoutSeconds int `toml:"ready_timeout_seconds"`

	// ReadyIntervalMs is the readiness poll cadence (default: 500)
	ReadyIntervalMs int `toml:"ready_interval_ms"`
}

// StorageConfig configures session persistence.
type StorageConfig struct {
	// Backend selects the persister: "json" (default) or "sqlite"
	Backend string `toml:"backend"`

	// Path of the backing file. Defaults to sessions.json or sessions.db
	// under the config directory depending on Backend.
	Path string `toml:"path"`
}

// ChatConfig configures turn behavior.
type ChatConfig struct {
	// Think requests the reasoning side-channel from models that support it
	Think bool `toml:"think"`
}

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultModel: "qwen3:8b",
		Ollama: OllamaConfig{
			BaseURL:             "http://127.0.0.1:11434",
			TimeoutSeconds:      30,
			ReadyTimeoutSeconds: 15,
			ReadyIntervalMs:     500,
		},
		Storage: StorageConfig{
			Backend: "json",
		},
		Chat: ChatConfig{
			Think: true,
		},
	}
}

// ConfigDir returns the chatrig configuration directory (~/.chatrig),
// creating it if needed.
func ConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(homeDir, ".chatrig")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// Load reads configuration from the default location, falling back to
// defaults when no file exists, then applies environment overrides.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadFile(filepath.Join(dir, "config.toml"))
}

// LoadFile reads configuration from an explicit path. A missing file is
// not an error; defaults apply.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from CHATRIG_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("CHATRIG_BASE_URL"); v != "" {
		c.Ollama.BaseURL = v
	}
	if v := os.Getenv("CHATRIG_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("CHATRIG_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("CHATRIG_THINK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Chat.Think = b
		}
	}
}

// validate rejects values the engine cannot work with.
func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "", "json", "sqlite":
	default:
		return fmt.Errorf("unknown storage backend %q (want \"json\" or \"sqlite\")", c.Storage.Backend)
	}
	if c.Ollama.TimeoutSeconds < 0 || c.Ollama.ReadyTimeoutSeconds < 0 || c.Ollama.ReadyIntervalMs < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// StoragePath resolves the persistence path, applying the backend's
// default filename under the config directory when unset.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	name := "sessions.json"
	if c.Storage.Backend == "sqlite" {
		name = "sessions.db"
	}
	return filepath.Join(dir, name), nil
}
