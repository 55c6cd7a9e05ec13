// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// voxchat - a voice-enabled chat client for the terminal.
package main

import (
	"fmt"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/voxchat-tui/internal/api"
	"github.com/jeranaias/voxchat-tui/internal/assembler"
	"github.com/jeranaias/voxchat-tui/internal/audio"
	"github.com/jeranaias/voxchat-tui/internal/cli"
	"github.com/jeranaias/voxchat-tui/internal/config"
	"github.com/jeranaias/voxchat-tui/internal/history"
	"github.com/jeranaias/voxchat-tui/internal/logging"
	"github.com/jeranaias/voxchat-tui/internal/session"
	"github.com/jeranaias/voxchat-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference for async streaming
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdTUI:
		runTUI(args)
	case cli.CmdChat:
		// Line mode logs to stderr, not the log file
		logging.SetupConsole(config.Global().Log.Level)
		cli.HandleChat(args)
	case cli.CmdConfig:
		cli.HandleConfig(args)
	case cli.CmdVersion:
		cli.HandleVersion()
	case cli.CmdHelp:
		cli.HandleHelp()
	default:
		runTUI(args)
	}
}

// runTUI starts the full-screen interface.
func runTUI(args cli.Args) {
	cfg := config.Global()
	if args.Server != "" {
		cfg.Server.BaseURL = args.Server
	}
	if args.NoAudio {
		cfg.Audio.Enabled = false
	}
	if args.Verbose {
		cfg.Log.Level = "debug"
	}

	// The TUI owns the terminal, so logs go to a file
	closeLog, err := logging.Setup(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
		closeLog = func() {}
	}
	defer closeLog()

	styles.ApplyBackground(cfg.UI.Theme)
	theme := styles.NewTheme()

	client := api.NewClient(cfg.Server.BaseURL).
		WithTimeout(cfg.RequestTimeout()).
		WithStreamIdleTimeout(cfg.StreamIdleTimeout())

	sess := session.NewStore()
	app := newApp(appDeps{
		cfg:      cfg,
		theme:    theme,
		client:   client,
		session:  sess,
		sender:   assembler.NewSender(client, sess),
		history:  history.NewController(client, sess),
		recorder: audio.NewRecorder(cfg.Audio),
		speaker:  audio.NewSpeaker(cfg.Audio),
		user:     args.User,
	})

	p := tea.NewProgram(app, tea.WithAltScreen())

	programMu.Lock()
	programRef = p
	programMu.Unlock()

	// Pick up config file edits without a restart
	if path, err := config.ConfigPath(); err == nil {
		w, werr := config.NewWatcher(path, func(next *config.Config) {
			send(configReloadedMsg{cfg: next})
		})
		if werr == nil {
			if w.Watch() != nil {
				w.Close()
			} else {
				defer w.Close()
			}
		}
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running voxchat: %v\n", err)
		os.Exit(1)
	}
}

// send delivers a message to the running program from a stream goroutine.
func send(msg tea.Msg) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}
