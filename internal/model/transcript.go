// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// MaxMessages caps the number of messages held in a transcript. The server
// owns the full history; this only bounds client memory for very long
// sessions.
const MaxMessages = 1000

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript holds the messages currently rendered in the chat view. It is
// the client's working copy of one conversation: the server remains the
// source of truth, and the transcript is replaced wholesale when the user
// selects a conversation from the history list.
//
// ConversationID is empty while the transcript belongs to a conversation the
// server has not named yet. The server assigns the identifier mid-stream on
// the first send and the value is written here exactly once.
type Transcript struct {
	ConversationID string     `json:"conversation_id,omitempty"`
	Title          string     `json:"title,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Messages       []*Message `json:"messages"`
}

// NewTranscript creates an empty transcript with no server identifier.
func NewTranscript() *Transcript {
	return &Transcript{
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
		Messages:  make([]*Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message to the transcript.
func (t *Transcript) AddMessage(msg *Message) {
	t.Messages = append(t.Messages, msg)
	t.UpdatedAt = time.Now()
	t.updateTitle()
	t.pruneOldMessages()
}

// AddUserMessage creates and appends a user message.
func (t *Transcript) AddUserMessage(content string) *Message {
	msg := NewUserMessage(content)
	t.AddMessage(msg)
	return msg
}

// AddAssistantMessage creates and appends a streaming assistant message.
func (t *Transcript) AddAssistantMessage() *Message {
	msg := NewAssistantMessage()
	t.AddMessage(msg)
	return msg
}

// AddSystemMessage creates and appends a system message.
func (t *Transcript) AddSystemMessage(content string) *Message {
	msg := NewSystemMessage(content)
	t.AddMessage(msg)
	return msg
}

// GetLastMessage returns the most recent message, or nil if empty.
func (t *Transcript) GetLastMessage() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return t.Messages[len(t.Messages)-1]
}

// GetLastAssistantMessage returns the most recent assistant message.
func (t *Transcript) GetLastAssistantMessage() *Message {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == RoleAssistant {
			return t.Messages[i]
		}
	}
	return nil
}

// AppendToLast appends a stream fragment to the last (streaming) message.
func (t *Transcript) AppendToLast(fragment string) {
	last := t.GetLastMessage()
	if last != nil && last.IsStreaming {
		last.AppendFragment(fragment)
	}
}

// FinalizeLast finalizes the last streaming message with statistics.
func (t *Transcript) FinalizeLast(stats *Statistics) {
	last := t.GetLastMessage()
	if last != nil && last.IsStreaming {
		last.FinalizeStream(stats)
	}
}

// Clear removes all messages and detaches the transcript from its
// conversation. The next send starts a new conversation on the server.
func (t *Transcript) Clear() {
	t.ConversationID = ""
	t.Title = ""
	t.Messages = make([]*Message, 0)
	t.UpdatedAt = time.Now()
}

// MessageCount returns the number of messages.
func (t *Transcript) MessageCount() int {
	return len(t.Messages)
}

// IsEmpty returns true if there are no messages.
func (t *Transcript) IsEmpty() bool {
	return len(t.Messages) == 0
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle derives a title from the first user message if not set.
func (t *Transcript) updateTitle() {
	if t.Title != "" {
		return
	}
	for _, msg := range t.Messages {
		if msg.Role == RoleUser {
			t.Title = msg.Preview(50)
			return
		}
	}
}

// GetTitle returns the transcript title or a default.
func (t *Transcript) GetTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return "New Conversation"
}

// pruneOldMessages drops the oldest messages past MaxMessages.
func (t *Transcript) pruneOldMessages() {
	if len(t.Messages) <= MaxMessages {
		return
	}
	t.Messages = t.Messages[len(t.Messages)-MaxMessages:]
}

// =============================================================================
// CONVERSATION SUMMARY
// =============================================================================

// ConversationSummary is one entry of the server's history listing.
type ConversationSummary struct {
	ID        string
	Title     string
	UpdatedAt string // opaque server timestamp, sortable lexicographically
}

// UnmarshalJSON decodes the wire form, a three-element array
// [id, title, timestamp].
func (s *ConversationSummary) UnmarshalJSON(data []byte) error {
	var entry []json.RawMessage
	if err := json.Unmarshal(data, &entry); err != nil {
		return fmt.Errorf("history entry is not an array: %w", err)
	}
	if len(entry) != 3 {
		return fmt.Errorf("history entry has %d elements, want 3", len(entry))
	}
	if err := json.Unmarshal(entry[0], &s.ID); err != nil {
		// Conversation ids may arrive as bare numbers
		var n json.Number
		if err2 := json.Unmarshal(entry[0], &n); err2 != nil {
			return fmt.Errorf("history entry id: %w", err)
		}
		s.ID = n.String()
	}
	if err := json.Unmarshal(entry[1], &s.Title); err != nil {
		return fmt.Errorf("history entry title: %w", err)
	}
	if err := json.Unmarshal(entry[2], &s.UpdatedAt); err != nil {
		return fmt.Errorf("history entry timestamp: %w", err)
	}
	return nil
}

// SortNewestFirst orders summaries newest-first in place. The server returns
// entries oldest-first; the sidebar always shows the most recent at the top.
func SortNewestFirst(entries []ConversationSummary) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UpdatedAt > entries[j].UpdatedAt
	})
}
