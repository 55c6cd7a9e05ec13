// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for the voxchat client.
//
// String helpers are UTF-8 safe: TruncateRunes counts characters and
// TruncateWidth counts terminal columns (double-width CJK aware).
// AtomicWriteFile writes files crash-safely with a temp-file + fsync +
// rename sequence; the config package uses it for every save.
//
// # Usage
//
//	// Truncate long strings safely for display
//	title := util.TruncateRunes(firstMessage, 50)
//
//	// Write files atomically to prevent data loss
//	err := util.AtomicWriteFile(path, data, 0644)
package util
