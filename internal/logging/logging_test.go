// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/voxchat-tui/internal/config"
)

func TestSetup_WritesToFile(t *testing.T) {
	tempDir := t.TempDir()
	cfg := config.Default()
	cfg.Log.Level = "info"
	cfg.Log.Path = filepath.Join(tempDir, "client.log")

	closer, err := Setup(cfg)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	log.Info().Str("event", "test_entry").Msg("hello")
	closer()

	data, err := os.ReadFile(cfg.Log.Path)
	if err != nil {
		t.Fatalf("Log file not readable: %v", err)
	}
	if len(data) == 0 {
		t.Error("Log file is empty after writing an entry")
	}
}

func TestSetup_DisabledLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "disabled"
	cfg.Log.Path = filepath.Join(t.TempDir(), "client.log")

	closer, err := Setup(cfg)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer closer()

	if zerolog.GlobalLevel() != zerolog.Disabled {
		t.Errorf("Global level = %v, want disabled", zerolog.GlobalLevel())
	}
}

func TestSetup_RejectsUnknownLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "verbose"

	if _, err := Setup(cfg); err == nil {
		t.Error("Unknown level should fail setup")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		want  zerolog.Level
		valid bool
	}{
		{"debug", zerolog.DebugLevel, true},
		{"info", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
		{"WARN", zerolog.WarnLevel, true},
		{"error", zerolog.ErrorLevel, true},
		{"disabled", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}

	for _, tt := range tests {
		got, err := parseLevel(tt.name)
		if tt.valid && err != nil {
			t.Errorf("parseLevel(%q) failed: %v", tt.name, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("parseLevel(%q) should fail", tt.name)
		}
		if tt.valid && got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
