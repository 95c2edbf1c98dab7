// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// the Ironbad terminal client.
//
// Supports both TOML and JSON configuration formats, with sensible
// defaults, environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.ironbad/config.toml
//   - ~/.ironbad/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/etlundquist/ironbad-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete client configuration.
type Config struct {
	// General settings
	Version string `toml:"version" json:"version"`

	// API holds backend connection settings.
	API APIConfig `toml:"api" json:"api"`

	// Chat holds conversation behavior settings.
	Chat ChatConfig `toml:"chat" json:"chat"`

	// Storage holds local persistence settings.
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Cache holds the contract section cache settings.
	Cache CacheConfig `toml:"cache" json:"cache"`

	// UI holds terminal rendering settings.
	UI UIConfig `toml:"ui" json:"ui"`
}

// APIConfig contains Ironbad backend connection configuration.
type APIConfig struct {
	// BaseURL is the backend API base URL
	BaseURL string `toml:"base_url" json:"base_url"`
	// Key is the API key sent as a bearer token (empty = no auth)
	Key string `toml:"key" json:"key"`
	// TimeoutSecs bounds non-streaming requests
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// StreamTimeoutSecs bounds stream establishment; the open stream itself
	// has no deadline
	StreamTimeoutSecs int `toml:"stream_timeout_secs" json:"stream_timeout_secs"`
	// RequestsPerSecond throttles outgoing requests
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
}

// ChatConfig contains conversation behavior configuration.
type ChatConfig struct {
	// Mode selects the backend endpoint: "chat" for the retrieval chat,
	// "agent" for the tool-running agent
	Mode string `toml:"mode" json:"mode"`
	// ShowActivity displays tool calls and reasoning summaries in the
	// transcript while the agent works
	ShowActivity bool `toml:"show_activity" json:"show_activity"`
}

// StorageConfig contains local persistence configuration.
type StorageConfig struct {
	// Dir is where archived conversation snapshots are written
	// (empty = ~/.ironbad/threads)
	Dir string `toml:"dir" json:"dir"`
}

// CacheConfig contains contract section cache configuration.
type CacheConfig struct {
	// Path is the SQLite database path (empty = ~/.ironbad/cache.db)
	Path string `toml:"path" json:"path"`
	// TTLHours is how long cached sections stay fresh
	TTLHours int `toml:"ttl_hours" json:"ttl_hours"`
	// MaxEntries bounds the cache size (0 = unlimited)
	MaxEntries int `toml:"max_entries" json:"max_entries"`
}

// UIConfig contains terminal rendering configuration.
type UIConfig struct {
	// Theme is the color theme: "dark", "light", or "auto"
	Theme string `toml:"theme" json:"theme"`
	// CodeTheme is the chroma syntax highlighting style for code blocks
	CodeTheme string `toml:"code_theme" json:"code_theme"`
	// MaxFPS caps transcript re-renders while tokens stream
	MaxFPS int `toml:"max_fps" json:"max_fps"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Version: "1.0",
		API: APIConfig{
			BaseURL:           "http://127.0.0.1:8000",
			TimeoutSecs:       30,
			StreamTimeoutSecs: 10,
			RequestsPerSecond: 10,
		},
		Chat: ChatConfig{
			Mode:         "agent",
			ShowActivity: true,
		},
		Cache: CacheConfig{
			TTLHours:   24,
			MaxEntries: 10000,
		},
		UI: UIConfig{
			Theme:     "dark",
			CodeTheme: "monokai",
			MaxFPS:    30,
		},
	}
}

// =============================================================================
// FILE LOCATIONS
// =============================================================================

// ConfigDir returns the configuration directory (~/.ironbad).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".ironbad"), nil
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

// EnsureConfigDir creates the configuration directory if needed.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s). Tries TOML first, then
// JSON, and falls back to defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				return nil, fmt.Errorf("failed to load TOML config: %w", err)
			}
			return finalize(cfg)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				return nil, fmt.Errorf("failed to load JSON config: %w", err)
			}
			return finalize(cfg)
		}
	}

	return finalize(cfg)
}

// LoadFromPath loads configuration from a specific file path with full
// validation. The format is chosen by extension; anything that is not
// .json is treated as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finalize(cfg)
}

// LoadTOML loads configuration from a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// finalize applies env overrides, defaults, and validation in order.
func finalize(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
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

// SaveTOML saves the configuration to a TOML file with 0600 permissions:
// the API key lives in this file.
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# ironbad configuration file")
	fmt.Fprintln(file, "# Generated by ironbad - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file, atomically so a crash
// mid-write cannot truncate it.
func SaveJSON(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
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
// DEFAULTS AND VALIDATION
// =============================================================================

// SetDefaults fills in any missing or zero-value fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = defaults.API.TimeoutSecs
	}
	if c.API.StreamTimeoutSecs == 0 {
		c.API.StreamTimeoutSecs = defaults.API.StreamTimeoutSecs
	}
	if c.API.RequestsPerSecond == 0 {
		c.API.RequestsPerSecond = defaults.API.RequestsPerSecond
	}
	if c.Chat.Mode == "" {
		c.Chat.Mode = defaults.Chat.Mode
	}
	if c.Cache.TTLHours == 0 {
		c.Cache.TTLHours = defaults.Cache.TTLHours
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = defaults.Cache.MaxEntries
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.UI.CodeTheme == "" {
		c.UI.CodeTheme = defaults.UI.CodeTheme
	}
	if c.UI.MaxFPS == 0 {
		c.UI.MaxFPS = defaults.UI.MaxFPS
	}
}

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

	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "api.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.API.BaseURL),
			})
		}
	}
	if c.API.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "api.timeout_secs",
			Message: "must be non-negative",
		})
	}
	if c.API.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "api.requests_per_second",
			Message: "must be non-negative",
		})
	}

	validModes := map[string]bool{"chat": true, "agent": true}
	if !validModes[strings.ToLower(c.Chat.Mode)] {
		errs = append(errs, ValidationError{
			Field:   "chat.mode",
			Message: fmt.Sprintf("invalid mode '%s', must be one of: chat, agent", c.Chat.Mode),
		})
	}

	if c.Cache.TTLHours < 0 {
		errs = append(errs, ValidationError{
			Field:   "cache.ttl_hours",
			Message: "must be non-negative",
		})
	}
	if c.Cache.MaxEntries < 0 || c.Cache.MaxEntries > 100000 {
		errs = append(errs, ValidationError{
			Field:   "cache.max_entries",
			Message: fmt.Sprintf("must be 0-100000, got %d", c.Cache.MaxEntries),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}
	if c.UI.MaxFPS < 1 || c.UI.MaxFPS > 120 {
		errs = append(errs, ValidationError{
			Field:   "ui.max_fps",
			Message: fmt.Sprintf("must be 1-120, got %d", c.UI.MaxFPS),
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
//   - IRONBAD_API_URL: overrides api.base_url
//   - IRONBAD_API_KEY: overrides api.key
//   - IRONBAD_MODE: overrides chat.mode
//   - IRONBAD_THEME: overrides ui.theme
//   - IRONBAD_CACHE_PATH: overrides cache.path
//   - IRONBAD_STORAGE_DIR: overrides storage.dir
//   - IRONBAD_MAX_FPS: overrides ui.max_fps
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("IRONBAD_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("IRONBAD_API_KEY"); v != "" {
		c.API.Key = v
	}
	if v := os.Getenv("IRONBAD_MODE"); v != "" {
		c.Chat.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("IRONBAD_THEME"); v != "" {
		c.UI.Theme = strings.ToLower(v)
	}
	if v := os.Getenv("IRONBAD_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("IRONBAD_STORAGE_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("IRONBAD_MAX_FPS"); v != "" {
		if fps, err := strconv.Atoi(v); err == nil {
			c.UI.MaxFPS = fps
		}
	}
}

// =============================================================================
// DERIVED PATHS
// =============================================================================

// CachePath returns the SQLite cache path, resolving the default when
// unset.
func (c *Config) CachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache.db"), nil
}

// StorageDir returns the thread snapshot directory, resolving the default
// when unset.
func (c *Config) StorageDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "threads"), nil
}
