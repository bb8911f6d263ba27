// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// the Provana KMS client.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.kms-tui/config.toml
//   - ~/.kms-tui/config.json
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/provana/kms-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete client configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Identity holds who the client acts as.
	Identity IdentityConfig `toml:"identity" json:"identity"`

	// Realtime holds the websocket backend settings.
	Realtime RealtimeConfig `toml:"realtime" json:"realtime"`

	// Store holds the session store settings.
	Store StoreConfig `toml:"store" json:"store"`

	// Sessiond holds the settings used when running the store daemon.
	Sessiond SessiondConfig `toml:"sessiond" json:"sessiond"`

	// UI holds terminal UI settings.
	UI UIConfig `toml:"ui" json:"ui"`
}

// IdentityConfig identifies the client user.
type IdentityConfig struct {
	// User is the account name sessions are stored under.
	User string `toml:"user" json:"user"`
}

// RealtimeConfig contains websocket backend configuration.
type RealtimeConfig struct {
	// URL is the websocket endpoint of the realtime backend.
	URL string `toml:"url" json:"url"`
	// ClientName is sent with every question so the backend can scope
	// retrieval to this client's knowledge base.
	ClientName string `toml:"client_name" json:"client_name"`
	// ReconnectBaseMs is the initial reconnect delay in milliseconds.
	ReconnectBaseMs int `toml:"reconnect_base_ms" json:"reconnect_base_ms"`
	// ReconnectMaxMs caps the reconnect delay in milliseconds.
	ReconnectMaxMs int `toml:"reconnect_max_ms" json:"reconnect_max_ms"`
	// ReconnectAttempts is how many reconnects are tried before giving up.
	ReconnectAttempts int `toml:"reconnect_attempts" json:"reconnect_attempts"`
}

// StoreConfig contains session store client configuration.
type StoreConfig struct {
	// BaseURL of the session store API.
	BaseURL string `toml:"base_url" json:"base_url"`
	// TimeoutSecs is the per-call timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// SessiondConfig contains store daemon configuration.
type SessiondConfig struct {
	// Addr is the daemon's listen address.
	Addr string `toml:"addr" json:"addr"`
	// DBPath is the SQLite database location (empty = ~/.kms-tui/sessions.db).
	DBPath string `toml:"db_path" json:"db_path"`
	// RequestsPerSecond is the per-client rate limit.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	// Burst is the rate limiter burst size.
	Burst int `toml:"burst" json:"burst"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// Markdown renders finalized answers through the markdown renderer.
	Markdown bool `toml:"markdown" json:"markdown"`
	// CompactMode uses a more compact UI layout.
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Identity: IdentityConfig{
			User: "",
		},

		Realtime: RealtimeConfig{
			URL:               "wss://kms.provana.ai/ws",
			ClientName:        "Provana",
			ReconnectBaseMs:   1000,
			ReconnectMaxMs:    30000,
			ReconnectAttempts: 5,
		},

		Store: StoreConfig{
			BaseURL:     "http://127.0.0.1:8790",
			TimeoutSecs: 10,
		},

		Sessiond: SessiondConfig{
			Addr:              "127.0.0.1:8790",
			DBPath:            "",
			RequestsPerSecond: 20,
			Burst:             40,
		},

		UI: UIConfig{
			Theme:       "dark",
			Markdown:    true,
			CompactMode: false,
		},
	}
}

// ReconnectBase returns the reconnect base delay as a duration.
func (c *RealtimeConfig) ReconnectBase() time.Duration {
	return time.Duration(c.ReconnectBaseMs) * time.Millisecond
}

// ReconnectMax returns the reconnect delay cap as a duration.
func (c *RealtimeConfig) ReconnectMax() time.Duration {
	return time.Duration(c.ReconnectMaxMs) * time.Millisecond
}

// Timeout returns the store call timeout as a duration.
func (c *StoreConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the client configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".kms-tui"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultDBPath returns the default sessiond database location.
func DefaultDBPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}
	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON config from %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON config from %s: %w", path, err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML config from %s: %w", path, err)
		}
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}

	if c.Realtime.URL == "" {
		c.Realtime.URL = defaults.Realtime.URL
	}
	if c.Realtime.ClientName == "" {
		c.Realtime.ClientName = defaults.Realtime.ClientName
	}
	if c.Realtime.ReconnectBaseMs == 0 {
		c.Realtime.ReconnectBaseMs = defaults.Realtime.ReconnectBaseMs
	}
	if c.Realtime.ReconnectMaxMs == 0 {
		c.Realtime.ReconnectMaxMs = defaults.Realtime.ReconnectMaxMs
	}
	if c.Realtime.ReconnectAttempts == 0 {
		c.Realtime.ReconnectAttempts = defaults.Realtime.ReconnectAttempts
	}

	if c.Store.BaseURL == "" {
		c.Store.BaseURL = defaults.Store.BaseURL
	}
	if c.Store.TimeoutSecs == 0 {
		c.Store.TimeoutSecs = defaults.Store.TimeoutSecs
	}

	if c.Sessiond.Addr == "" {
		c.Sessiond.Addr = defaults.Sessiond.Addr
	}
	if c.Sessiond.RequestsPerSecond == 0 {
		c.Sessiond.RequestsPerSecond = defaults.Sessiond.RequestsPerSecond
	}
	if c.Sessiond.Burst == 0 {
		c.Sessiond.Burst = defaults.Sessiond.Burst
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only)
// and the config directory with 0700.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# kms-tui configuration file")
	fmt.Fprintln(&buf, "")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Realtime.URL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "realtime.url",
			Message: fmt.Sprintf("invalid URL: %v", err),
		})
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errs = append(errs, ValidationError{
			Field:   "realtime.url",
			Message: fmt.Sprintf("scheme must be ws or wss, got %q", u.Scheme),
		})
	}

	if c.Realtime.ReconnectBaseMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "realtime.reconnect_base_ms",
			Message: "must be non-negative",
		})
	}
	if c.Realtime.ReconnectMaxMs < c.Realtime.ReconnectBaseMs {
		errs = append(errs, ValidationError{
			Field:   "realtime.reconnect_max_ms",
			Message: "must be at least reconnect_base_ms",
		})
	}
	if c.Realtime.ReconnectAttempts < 0 {
		errs = append(errs, ValidationError{
			Field:   "realtime.reconnect_attempts",
			Message: "must be non-negative",
		})
	}

	if u, err := url.Parse(c.Store.BaseURL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "store.base_url",
			Message: fmt.Sprintf("invalid URL: %v", err),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{
			Field:   "store.base_url",
			Message: fmt.Sprintf("scheme must be http or https, got %q", u.Scheme),
		})
	}

	if c.Store.TimeoutSecs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "store.timeout_secs",
			Message: "must be positive",
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - KMSTUI_USER: overrides identity.user
//   - KMSTUI_WS_URL: overrides realtime.url
//   - KMSTUI_CLIENT_NAME: overrides realtime.client_name
//   - KMSTUI_STORE_URL: overrides store.base_url
//   - KMSTUI_SESSIOND_ADDR: overrides sessiond.addr
//   - KMSTUI_SESSIOND_DB: overrides sessiond.db_path
//   - KMSTUI_RECONNECT_ATTEMPTS: overrides realtime.reconnect_attempts
//   - KMSTUI_THEME: overrides ui.theme
func (c *Config) ApplyEnvOverrides() {
	if user := os.Getenv("KMSTUI_USER"); user != "" {
		c.Identity.User = user
	}
	if wsURL := os.Getenv("KMSTUI_WS_URL"); wsURL != "" {
		c.Realtime.URL = wsURL
	}
	if name := os.Getenv("KMSTUI_CLIENT_NAME"); name != "" {
		c.Realtime.ClientName = name
	}
	if storeURL := os.Getenv("KMSTUI_STORE_URL"); storeURL != "" {
		c.Store.BaseURL = storeURL
	}
	if addr := os.Getenv("KMSTUI_SESSIOND_ADDR"); addr != "" {
		c.Sessiond.Addr = addr
	}
	if dbPath := os.Getenv("KMSTUI_SESSIOND_DB"); dbPath != "" {
		c.Sessiond.DBPath = dbPath
	}
	if attempts := os.Getenv("KMSTUI_RECONNECT_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil && n >= 0 {
			c.Realtime.ReconnectAttempts = n
		}
	}
	if theme := os.Getenv("KMSTUI_THEME"); theme != "" {
		c.UI.Theme = theme
	}
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
// This should only be used in tests to reset state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
