// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/voxchat-tui/internal/ui/styles"
	"github.com/jeranaias/voxchat-tui/internal/util"
)

// StatusBar is the one-line footer: identity on the left, transient status
// in the middle, key hints on the right.
type StatusBar struct {
	theme *styles.Theme
	width int

	user      string
	status    string
	isError   bool
	streaming bool
	recording bool
}

// NewStatusBar creates an empty status bar.
func NewStatusBar(theme *styles.Theme) StatusBar {
	return StatusBar{theme: theme, width: 80}
}

// SetWidth sets the bar width in cells.
func (s *StatusBar) SetWidth(width int) {
	s.width = width
}

// SetUser sets the logged-in user name shown on the left.
func (s *StatusBar) SetUser(user string) {
	s.user = user
}

// SetStatus replaces the transient status message.
func (s *StatusBar) SetStatus(msg string, isError bool) {
	s.status = msg
	s.isError = isError
}

// ClearStatus removes the transient status message.
func (s *StatusBar) ClearStatus() {
	s.status = ""
	s.isError = false
}

// SetStreaming toggles the streaming indicator.
func (s *StatusBar) SetStreaming(on bool) {
	s.streaming = on
}

// SetRecording toggles the recording indicator.
func (s *StatusBar) SetRecording(on bool) {
	s.recording = on
}

// View renders the bar.
func (s *StatusBar) View() string {
	var left []string
	if s.user != "" {
		left = append(left, s.user)
	}
	if s.streaming {
		left = append(left, styles.StatusIndicators.Streaming)
	}
	if s.recording {
		left = append(left, styles.StatusIndicators.Recording)
	}

	leftPart := s.theme.StatusBar.Render(strings.Join(left, " "))
	if s.status != "" {
		style := s.theme.StatusBar
		if s.isError {
			style = s.theme.StatusError
		}
		leftPart += "  " + style.Render(util.TruncateWidth(s.status, s.width/2))
	}

	hints := s.theme.Help.Render("ctrl+n new  ctrl+r record  ctrl+d delete  tab sidebar  ctrl+c quit")

	gap := s.width - lipgloss.Width(leftPart) - lipgloss.Width(hints)
	if gap < 1 {
		return leftPart
	}
	return leftPart + strings.Repeat(" ", gap) + hints
}
