// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command handlers for voxchat.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Server  string // Override server base URL
	User    string // Pre-fill username
	NoAudio bool   // Disable voice input/output
	Verbose bool

	// Command-specific
	ConfigKey string
	ConfigVal string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `voxchat - a voice-enabled chat client for the terminal

Usage:
  voxchat                    Start the TUI (default)
  voxchat chat               Line-mode chat REPL (for dumb terminals and pipes)
  voxchat config [show|path] Show effective configuration
  voxchat version            Print version information
  voxchat help               Show this help

Flags:
  --server URL     Override the chat server base URL
  --user NAME      Pre-fill the login username
  --no-audio       Disable voice input/output
  -v, --verbose    Verbose logging

Keys (TUI):
  enter            Send message
  tab              Toggle sidebar focus
  ctrl+n           New conversation
  ctrl+r           Start/stop voice recording
  ctrl+d           Delete selected conversation (y confirms)
  ctrl+s           Switch login/signup on the auth screen
  ctrl+o           Log out
  ctrl+x           Delete your account (asks for the password again)
  space            Stop speech playback
  ctrl+c           Quit
`

// Parse reads os.Args and returns the command plus its arguments.
func Parse() (Command, Args) {
	args := Args{}
	rest := os.Args[1:]

	cmd := CmdTUI
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		switch rest[0] {
		case "chat":
			cmd = CmdChat
		case "config":
			cmd = CmdConfig
		case "version", "--version":
			cmd = CmdVersion
		case "help", "--help", "-h":
			cmd = CmdHelp
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n%s", rest[0], usageText)
			os.Exit(2)
		}
		rest = rest[1:]
	}

	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--server":
			if i+1 < len(rest) {
				i++
				args.Server = rest[i]
			}
		case "--user":
			if i+1 < len(rest) {
				i++
				args.User = rest[i]
			}
		case "--no-audio":
			args.NoAudio = true
		case "-v", "--verbose":
			args.Verbose = true
		case "-h", "--help":
			return CmdHelp, args
		default:
			args.Raw = append(args.Raw, rest[i])
		}
	}

	if cmd == CmdConfig && len(args.Raw) > 0 {
		args.ConfigKey = args.Raw[0]
	}
	return cmd, args
}

// HandleHelp prints usage.
func HandleHelp() {
	fmt.Print(usageText)
}

// HandleVersion prints version information.
func HandleVersion() {
	fmt.Printf("voxchat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
