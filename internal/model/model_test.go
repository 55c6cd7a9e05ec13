// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessage_StreamingLifecycle(t *testing.T) {
	msg := NewAssistantMessage()
	if !msg.IsStreaming {
		t.Fatal("New assistant message should be streaming")
	}

	msg.AppendFragment("Hel")
	msg.AppendFragment("lo")
	if got := msg.GetDisplayContent(); got != "Hello" {
		t.Errorf("Display content during stream = %q, want %q", got, "Hello")
	}
	if msg.Content != "" {
		t.Errorf("Content should stay empty until finalized, got %q", msg.Content)
	}

	stats := NewStatistics()
	stats.RecordFirstFragment()
	stats.Finalize(2)
	msg.FinalizeStream(stats)

	if msg.IsStreaming {
		t.Error("Message should not be streaming after finalize")
	}
	if msg.Content != "Hello" {
		t.Errorf("Content after finalize = %q, want %q", msg.Content, "Hello")
	}
	if msg.GetDisplayContent() != "Hello" {
		t.Errorf("Display content after finalize = %q", msg.GetDisplayContent())
	}
}

func TestMessage_AppendIgnoredWhenNotStreaming(t *testing.T) {
	msg := NewUserMessage("hi")
	msg.AppendFragment("extra")
	if msg.GetDisplayContent() != "hi" {
		t.Errorf("Append on non-streaming message should be a no-op, got %q", msg.GetDisplayContent())
	}
}

func TestMessage_FinalizeTwiceIsIdempotent(t *testing.T) {
	msg := NewAssistantMessage()
	msg.AppendFragment("done")
	msg.FinalizeStream(nil)
	msg.FinalizeStream(nil)
	if msg.Content != "done" {
		t.Errorf("Content = %q, want %q", msg.Content, "done")
	}
}

func TestMessage_Preview(t *testing.T) {
	msg := NewUserMessage(strings.Repeat("a", 100))
	preview := msg.Preview(50)
	if len([]rune(preview)) > 50 {
		t.Errorf("Preview too long: %d runes", len([]rune(preview)))
	}
	if !strings.HasSuffix(preview, "...") {
		t.Errorf("Long preview should end with ellipsis: %q", preview)
	}
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestTranscript_TitleFromFirstUserMessage(t *testing.T) {
	tr := NewTranscript()
	tr.AddSystemMessage("connected")
	tr.AddUserMessage("What is the capital of France?")
	tr.AddUserMessage("And of Spain?")

	if tr.GetTitle() != "What is the capital of France?" {
		t.Errorf("Title = %q, want first user message", tr.GetTitle())
	}
}

func TestTranscript_DefaultTitle(t *testing.T) {
	tr := NewTranscript()
	if tr.GetTitle() != "New Conversation" {
		t.Errorf("Empty transcript title = %q", tr.GetTitle())
	}
}

func TestTranscript_AppendAndFinalize(t *testing.T) {
	tr := NewTranscript()
	tr.AddUserMessage("hi")
	tr.AddAssistantMessage()

	tr.AppendToLast("Hel")
	tr.AppendToLast("lo")
	tr.FinalizeLast(nil)

	last := tr.GetLastMessage()
	if last.Content != "Hello" {
		t.Errorf("Last message content = %q, want %q", last.Content, "Hello")
	}
	if last.IsStreaming {
		t.Error("Last message should be finalized")
	}
}

func TestTranscript_AppendToLastIgnoresNonStreaming(t *testing.T) {
	tr := NewTranscript()
	tr.AddUserMessage("hi")
	tr.AppendToLast("junk")
	if tr.GetLastMessage().Content != "hi" {
		t.Errorf("AppendToLast should not touch a finalized message")
	}
}

func TestTranscript_Clear(t *testing.T) {
	tr := NewTranscript()
	tr.ConversationID = "c42"
	tr.AddUserMessage("hello")

	tr.Clear()

	if tr.ConversationID != "" {
		t.Errorf("Clear should drop the conversation id, got %q", tr.ConversationID)
	}
	if !tr.IsEmpty() {
		t.Errorf("Clear should drop all messages, %d remain", tr.MessageCount())
	}
	if tr.Title != "" {
		t.Errorf("Clear should drop the title, got %q", tr.Title)
	}
}

func TestTranscript_PruneOldMessages(t *testing.T) {
	tr := NewTranscript()
	for i := 0; i < MaxMessages+10; i++ {
		tr.AddUserMessage("msg")
	}
	if tr.MessageCount() != MaxMessages {
		t.Errorf("MessageCount = %d, want %d", tr.MessageCount(), MaxMessages)
	}
}

// =============================================================================
// CONVERSATION SUMMARY TESTS
// =============================================================================

func TestConversationSummary_UnmarshalTriple(t *testing.T) {
	var s ConversationSummary
	err := json.Unmarshal([]byte(`["c1", "First chat", "2025-01-02 10:00:00"]`), &s)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if s.ID != "c1" || s.Title != "First chat" || s.UpdatedAt != "2025-01-02 10:00:00" {
		t.Errorf("Unexpected summary: %+v", s)
	}
}

func TestConversationSummary_NumericID(t *testing.T) {
	var s ConversationSummary
	err := json.Unmarshal([]byte(`[17, "chat", "2025-01-02 10:00:00"]`), &s)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if s.ID != "17" {
		t.Errorf("Numeric id should decode as string, got %q", s.ID)
	}
}

func TestConversationSummary_RejectsBadShape(t *testing.T) {
	var s ConversationSummary
	if err := json.Unmarshal([]byte(`["c1", "title"]`), &s); err == nil {
		t.Error("Two-element entry should fail to decode")
	}
	if err := json.Unmarshal([]byte(`{"id":"c1"}`), &s); err == nil {
		t.Error("Object entry should fail to decode")
	}
}

func TestSortNewestFirst(t *testing.T) {
	entries := []ConversationSummary{
		{ID: "c1", UpdatedAt: "2025-01-01 09:00:00"},
		{ID: "c2", UpdatedAt: "2025-01-02 09:00:00"},
		{ID: "c3", UpdatedAt: "2025-01-03 09:00:00"},
	}

	SortNewestFirst(entries)

	if entries[0].ID != "c3" || entries[2].ID != "c1" {
		t.Errorf("Wrong order after sort: %v, %v, %v", entries[0].ID, entries[1].ID, entries[2].ID)
	}
}
