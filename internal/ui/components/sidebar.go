// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable view pieces for the voxchat TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/jeranaias/voxchat-tui/internal/model"
	"github.com/jeranaias/voxchat-tui/internal/ui/styles"
	"github.com/jeranaias/voxchat-tui/internal/util"
)

// Sidebar renders the conversation list. Selection moves with the cursor;
// the visible window follows it when the list is taller than the pane.
type Sidebar struct {
	theme   *styles.Theme
	entries []model.ConversationSummary

	cursor int
	offset int

	width  int
	height int

	activeID string
}

// NewSidebar creates an empty sidebar.
func NewSidebar(theme *styles.Theme) Sidebar {
	return Sidebar{theme: theme, width: 28, height: 20}
}

// SetSize sets the pane dimensions in cells.
func (s *Sidebar) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.clampCursor()
}

// SetEntries replaces the list, keeping the cursor on the same conversation
// when it still exists.
func (s *Sidebar) SetEntries(entries []model.ConversationSummary) {
	var keep string
	if s.cursor < len(s.entries) {
		keep = s.entries[s.cursor].ID
	}
	s.entries = entries
	s.cursor = 0
	for i, e := range entries {
		if e.ID == keep {
			s.cursor = i
			break
		}
	}
	s.clampCursor()
}

// SetActive marks the conversation currently loaded in the chat pane.
func (s *Sidebar) SetActive(id string) {
	s.activeID = id
}

// Selected returns the conversation under the cursor.
func (s *Sidebar) Selected() (model.ConversationSummary, bool) {
	if s.cursor >= len(s.entries) {
		return model.ConversationSummary{}, false
	}
	return s.entries[s.cursor], true
}

// Count returns the number of listed conversations.
func (s *Sidebar) Count() int {
	return len(s.entries)
}

// CursorUp moves the selection up one entry.
func (s *Sidebar) CursorUp() {
	if s.cursor > 0 {
		s.cursor--
	}
	s.follow()
}

// CursorDown moves the selection down one entry.
func (s *Sidebar) CursorDown() {
	if s.cursor < len(s.entries)-1 {
		s.cursor++
	}
	s.follow()
}

func (s *Sidebar) clampCursor() {
	if s.cursor >= len(s.entries) {
		s.cursor = len(s.entries) - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
	s.follow()
}

// follow keeps the cursor inside the visible window.
func (s *Sidebar) follow() {
	visible := s.visibleRows()
	if visible <= 0 {
		return
	}
	if s.cursor < s.offset {
		s.offset = s.cursor
	}
	if s.cursor >= s.offset+visible {
		s.offset = s.cursor - visible + 1
	}
}

func (s *Sidebar) visibleRows() int {
	// One row for the title, one for the count line
	return s.height - 2
}

// View renders the sidebar pane.
func (s *Sidebar) View() string {
	var b strings.Builder
	b.WriteString(s.theme.SidebarTitle.Render("Conversations"))
	b.WriteString("\n")

	if len(s.entries) == 0 {
		b.WriteString(s.theme.Help.Render("(none yet)"))
		b.WriteString("\n")
	}

	visible := s.visibleRows()
	end := s.offset + visible
	if end > len(s.entries) {
		end = len(s.entries)
	}
	for i := s.offset; i < end; i++ {
		entry := s.entries[i]
		title := entry.Title
		if title == "" {
			title = entry.ID
		}
		marker := "  "
		if entry.ID == s.activeID {
			marker = "* "
		}
		line := util.TruncateWidth(marker+title, s.width-2)
		if i == s.cursor {
			b.WriteString(s.theme.SidebarSelected.Render(line))
		} else {
			b.WriteString(s.theme.SidebarEntry.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString(s.theme.Help.Render(fmt.Sprintf("%d total", len(s.entries))))
	return s.theme.Sidebar.Width(s.width).Height(s.height).Render(b.String())
}
