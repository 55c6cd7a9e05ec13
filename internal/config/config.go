// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for voxchat.
//
// Configuration file location: ~/.voxchat/config.toml, with built-in
// defaults and environment variable overrides applied on top.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/voxchat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete voxchat configuration.
type Config struct {
	Version string `toml:"version"`

	Server ServerConfig `toml:"server"`
	Audio  AudioConfig  `toml:"audio"`
	UI     UIConfig     `toml:"ui"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig describes the chat server the client talks to.
type ServerConfig struct {
	// BaseURL is the root URL of the chat server
	BaseURL string `toml:"base_url"`
	// RequestTimeoutSecs bounds plain request/response calls
	RequestTimeoutSecs int `toml:"request_timeout_secs"`
	// StreamIdleTimeoutSecs closes a reply stream after this much server
	// silence. 0 disables the bound.
	StreamIdleTimeoutSecs int `toml:"stream_idle_timeout_secs"`
}

// AudioConfig controls voice input/output.
type AudioConfig struct {
	// Enabled turns the record/speak features on
	Enabled bool `toml:"enabled"`
	// RecordCommand is the external command used to capture microphone
	// audio to a file (the file path is appended as the last argument)
	RecordCommand []string `toml:"record_command"`
	// SpeakCommand is the external command used for speech playback of
	// finished replies (text is passed on stdin)
	SpeakCommand []string `toml:"speak_command"`
	// MaxRecordSecs bounds one recording; 0 means no bound
	MaxRecordSecs int `toml:"max_record_secs"`
	// SpeakReplies speaks every finished voice-initiated reply aloud
	SpeakReplies bool `toml:"speak_replies"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// ShowTimestamps displays message timestamps in the chat view
	ShowTimestamps bool `toml:"show_timestamps"`
	// ShowStreamStats displays per-reply stream statistics
	ShowStreamStats bool `toml:"show_stream_stats"`
	// CompactMode uses a more compact layout
	CompactMode bool `toml:"compact_mode"`
	// WordWrap is the markdown rendering width in columns
	WordWrap int `toml:"word_wrap"`
}

// LogConfig controls the client log file.
type LogConfig struct {
	// Level is one of: debug, info, warn, error, disabled
	Level string `toml:"level"`
	// Path overrides the default ~/.voxchat/client.log
	Path string `toml:"path"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			BaseURL:               "http://127.0.0.1:5000",
			RequestTimeoutSecs:    30,
			StreamIdleTimeoutSecs: 120,
		},

		Audio: AudioConfig{
			Enabled:       true,
			RecordCommand: []string{"sox", "-d", "-t", "wav"},
			SpeakCommand:  []string{"espeak", "--stdin"},
			MaxRecordSecs: 120,
			SpeakReplies:  true,
		},

		UI: UIConfig{
			Theme:           "dark",
			ShowTimestamps:  false,
			ShowStreamStats: true,
			CompactMode:     false,
			WordWrap:        80,
		},

		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the voxchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".voxchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LogPath returns the configured log file path, defaulting to
// ~/.voxchat/client.log.
func (c *Config) LogPath() (string, error) {
	if c.Log.Path != "" {
		return c.Log.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "client.log"), nil
}

// RequestTimeout returns the request/response call timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSecs) * time.Second
}

// StreamIdleTimeout returns the reply-stream silence bound as a duration.
// Zero disables the watchdog.
func (c *Config) StreamIdleTimeout() time.Duration {
	return time.Duration(c.Server.StreamIdleTimeoutSecs) * time.Second
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on the config file.
// SECURITY: Config files should be 0600 (owner read/write only).
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file, falling back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path with full
// validation. A missing file is not an error; defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		// SECURITY: Check and fix file permissions if needed
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

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
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# voxchat configuration file")
	fmt.Fprintln(&buf, "# Generated by voxchat - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
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

	if c.Server.BaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: "must not be empty",
		})
	} else if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: fmt.Sprintf("invalid URL '%s'", c.Server.BaseURL),
		})
	}

	if c.Server.RequestTimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.request_timeout_secs",
			Message: "must be non-negative",
		})
	}
	if c.Server.StreamIdleTimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.stream_idle_timeout_secs",
			Message: "must be non-negative",
		})
	}

	if c.Audio.Enabled {
		if len(c.Audio.RecordCommand) == 0 {
			errs = append(errs, ValidationError{
				Field:   "audio.record_command",
				Message: "must not be empty while audio is enabled",
			})
		}
		if c.Audio.SpeakReplies && len(c.Audio.SpeakCommand) == 0 {
			errs = append(errs, ValidationError{
				Field:   "audio.speak_command",
				Message: "must not be empty while speak_replies is enabled",
			})
		}
	}
	if c.Audio.MaxRecordSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "audio.max_record_secs",
			Message: "must be non-negative",
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}
	if c.UI.WordWrap < 20 || c.UI.WordWrap > 300 {
		errs = append(errs, ValidationError{
			Field:   "ui.word_wrap",
			Message: fmt.Sprintf("word_wrap must be 20-300, got %d", c.UI.WordWrap),
		})
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error, disabled", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills in any missing or zero-value configuration fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaults.Server.BaseURL
	}
	if c.Server.RequestTimeoutSecs == 0 {
		c.Server.RequestTimeoutSecs = defaults.Server.RequestTimeoutSecs
	}
	if len(c.Audio.RecordCommand) == 0 {
		c.Audio.RecordCommand = defaults.Audio.RecordCommand
	}
	if len(c.Audio.SpeakCommand) == 0 {
		c.Audio.SpeakCommand = defaults.Audio.SpeakCommand
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = defaults.UI.WordWrap
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - VOXCHAT_SERVER_URL: overrides server.base_url
//   - VOXCHAT_THEME: overrides ui.theme
//   - VOXCHAT_LOG_LEVEL: overrides log.level
//   - VOXCHAT_NO_AUDIO: set to "1" or "true" to disable voice features
func (c *Config) ApplyEnvOverrides() {
	if serverURL := os.Getenv("VOXCHAT_SERVER_URL"); serverURL != "" {
		c.Server.BaseURL = serverURL
	}
	if theme := os.Getenv("VOXCHAT_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if level := os.Getenv("VOXCHAT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if noAudio := os.Getenv("VOXCHAT_NO_AUDIO"); noAudio != "" {
		if noAudio == "1" || strings.ToLower(noAudio) == "true" {
			c.Audio.Enabled = false
		}
	}
}

// Clone creates a copy of the configuration. Slices are copied so the clone
// cannot mutate the original's audio commands.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Audio.RecordCommand = append([]string(nil), c.Audio.RecordCommand...)
	clone.Audio.SpeakCommand = append([]string(nil), c.Audio.SpeakCommand...)
	return &clone
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

// ResetGlobalForTesting resets the global config state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
