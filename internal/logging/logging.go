// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the client log.
//
// The TUI owns the terminal, so logs go to a file (~/.voxchat/client.log by
// default) instead of stderr. Tokens and passwords must never be logged;
// callers log user names and conversation ids only.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/voxchat-tui/internal/config"
)

// Setup initializes the global logger from config. The returned closer
// flushes and closes the log file; call it on shutdown.
func Setup(cfg *config.Config) (func(), error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)

	if level == zerolog.Disabled {
		log.Logger = zerolog.Nop()
		return func() {}, nil
	}

	path, err := cfg.LogPath()
	if err != nil {
		return nil, fmt.Errorf("could not resolve log path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}

	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return func() { f.Close() }, nil
}

// SetupConsole points the global logger at stderr with human-readable
// output. Used by the line-mode CLI where no TUI owns the terminal.
func SetupConsole(levelName string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := parseLevel(levelName)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	return nil
}

func parseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}
