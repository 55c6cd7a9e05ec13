// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat pane for the voxchat TUI.
//
// This file implements frame limiting for reply streaming. The server can
// deliver fragments far faster than a terminal should repaint; re-rendering
// markdown on every fragment causes flicker and burns CPU. A FrameLimiter
// keeps only the newest accumulated text and releases it at a capped rate,
// which is safe precisely because every render works from the full
// accumulated string rather than a delta.
package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// FRAME LIMITER
// =============================================================================

// FrameLimiter coalesces streamed render requests to a bounded frame rate.
//
// Thread-safety: Set is called from the stream goroutine while Flush runs
// on the Bubble Tea loop, so all state is mutex-guarded.
type FrameLimiter struct {
	mu        sync.Mutex
	latest    string
	dirty     bool
	lastFlush time.Time

	minInterval time.Duration
}

// DefaultFrameInterval caps repaints at ~30fps.
const DefaultFrameInterval = 33 * time.Millisecond

// NewFrameLimiter creates a limiter with the default frame cap.
func NewFrameLimiter() *FrameLimiter {
	return &FrameLimiter{minInterval: DefaultFrameInterval}
}

// Set records the newest accumulated text. Older pending text is simply
// superseded; intermediate frames carry no information the latest one lacks.
func (f *FrameLimiter) Set(accumulated string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = accumulated
	f.dirty = true
}

// Flush returns the pending text if a frame is due. Reports false when
// nothing changed or the last repaint was too recent.
func (f *FrameLimiter) Flush() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirty || time.Since(f.lastFlush) < f.minInterval {
		return "", false
	}
	f.dirty = false
	f.lastFlush = time.Now()
	return f.latest, true
}

// Force returns the pending text regardless of timing. Used on stream
// completion so the final fragment is never left unrendered.
func (f *FrameLimiter) Force() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirty {
		return "", false
	}
	f.dirty = false
	f.lastFlush = time.Now()
	return f.latest, true
}

// Reset discards pending text when a stream is abandoned.
func (f *FrameLimiter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = ""
	f.dirty = false
}

// =============================================================================
// STREAMING TICK
// =============================================================================

// StreamTickMsg drives repaints while a reply is streaming.
type StreamTickMsg struct {
	Time time.Time
}

// streamTickCmd schedules the next streaming frame.
func streamTickCmd() tea.Cmd {
	return tea.Tick(DefaultFrameInterval, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
