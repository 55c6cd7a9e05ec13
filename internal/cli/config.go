// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - "voxchat config" command handler.
package cli

import (
	"fmt"
	"os"

	"github.com/jeranaias/voxchat-tui/internal/config"
)

// HandleConfig shows the effective configuration or its file path.
func HandleConfig(args Args) {
	switch args.ConfigKey {
	case "", "show":
		cfg := config.Global()
		fmt.Printf("server.base_url                = %s\n", cfg.Server.BaseURL)
		fmt.Printf("server.request_timeout_secs    = %d\n", cfg.Server.RequestTimeoutSecs)
		fmt.Printf("server.stream_idle_timeout_secs = %d\n", cfg.Server.StreamIdleTimeoutSecs)
		fmt.Printf("audio.enabled                  = %t\n", cfg.Audio.Enabled)
		fmt.Printf("audio.speak_replies            = %t\n", cfg.Audio.SpeakReplies)
		fmt.Printf("ui.theme                       = %s\n", cfg.UI.Theme)
		fmt.Printf("ui.word_wrap                   = %d\n", cfg.UI.WordWrap)
		fmt.Printf("log.level                      = %s\n", cfg.Log.Level)

	case "path":
		path, err := config.ConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(path)

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args.ConfigKey)
		os.Exit(2)
	}
}
