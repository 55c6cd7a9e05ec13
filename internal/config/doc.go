// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for voxchat.
//
// Configuration lives at ~/.voxchat/config.toml. Load order: built-in
// defaults, then the file, then environment variable overrides
// (VOXCHAT_SERVER_URL, VOXCHAT_THEME, VOXCHAT_LOG_LEVEL, VOXCHAT_NO_AUDIO).
// Saves go through an atomic temp-file + rename write with 0600 permissions.
//
// A Watcher can reload the global config when the file changes on disk, so
// edits take effect without restarting the client.
package config
