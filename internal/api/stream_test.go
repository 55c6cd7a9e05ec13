// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// SSE READER TESTS
// =============================================================================

func TestSSEReader_NamedEvent(t *testing.T) {
	input := "event: chat\ndata: {\"response\": \"hi\"}\n\n"
	reader := NewSSEReader(strings.NewReader(input))

	name, data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if name != "chat" {
		t.Errorf("name = %q, want %q", name, "chat")
	}
	if string(data) != `{"response": "hi"}` {
		t.Errorf("data = %q", data)
	}
}

func TestSSEReader_MultilineData(t *testing.T) {
	input := "data: line1\ndata: line2\n\n"
	reader := NewSSEReader(strings.NewReader(input))

	_, data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if string(data) != "line1\nline2" {
		t.Errorf("data = %q, want %q", data, "line1\nline2")
	}
}

func TestSSEReader_CRLFAndComments(t *testing.T) {
	input := ": keepalive\r\nid: 7\r\nevent: conversation_id\r\ndata: c42\r\n\r\n"
	reader := NewSSEReader(strings.NewReader(input))

	name, data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if name != "conversation_id" || string(data) != "c42" {
		t.Errorf("got (%q, %q), want (conversation_id, c42)", name, data)
	}
}

func TestSSEReader_TrailingEventWithoutBlankLine(t *testing.T) {
	reader := NewSSEReader(strings.NewReader("event: chat\ndata: tail"))

	name, data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if name != "chat" || string(data) != "tail" {
		t.Errorf("got (%q, %q)", name, data)
	}

	if _, _, err := reader.ReadEvent(); err != io.EOF {
		t.Errorf("second ReadEvent() error = %v, want io.EOF", err)
	}
}

func TestSSEReader_EventTooLarge(t *testing.T) {
	reader := NewSSEReader(strings.NewReader("data: " + strings.Repeat("x", MaxEventSize+1) + "\n\n"))

	if _, _, err := reader.ReadEvent(); err == nil {
		t.Error("Expected error for oversized event")
	}
}

// =============================================================================
// STREAM TESTS
// =============================================================================

// sseHandler writes the given raw SSE frames, flushing after each.
func sseHandler(t *testing.T, frames ...string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("ResponseWriter does not support flushing")
		}
		for _, frame := range frames {
			io.WriteString(w, frame)
			flusher.Flush()
		}
	}
}

func chatFrame(response string, end bool) string {
	endVal := "false"
	if end {
		endVal = "true"
	}
	return "event: chat\ndata: {\"response\": \"" + response + "\", \"endOfMessage\": " + endVal + "}\n\n"
}

func collectEvents(t *testing.T, s *Stream) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("Timed out waiting for events, got %d so far", len(events))
		}
	}
}

func TestOpenStream_NewConversationSequence(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t,
		"event: conversation_id\ndata: c1\n\n",
		chatFrame("He", false),
		chatFrame("llo", true),
	))
	defer srv.Close()

	s, err := NewClient(srv.URL).OpenStream(context.Background(), "alice", "tok", "Hi", "")
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer s.Close()

	events := collectEvents(t, s)
	if len(events) != 3 {
		t.Fatalf("Got %d events, want 3: %+v", len(events), events)
	}
	if events[0].Kind != EventConversationID || events[0].ConversationID != "c1" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Kind != EventChat || events[1].Fragment != "He" || events[1].EndOfMessage {
		t.Errorf("events[1] = %+v", events[1])
	}
	if events[2].Kind != EventChat || events[2].Fragment != "llo" || !events[2].EndOfMessage {
		t.Errorf("events[2] = %+v", events[2])
	}
}

func TestOpenStream_SendsConversationID(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.URL.Query().Get("conversation_id")
		sseHandler(t, chatFrame("ok", true))(w, r)
	}))
	defer srv.Close()

	s, err := NewClient(srv.URL).OpenStream(context.Background(), "alice", "tok", "again", "c7")
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer s.Close()
	collectEvents(t, s)

	if gotID != "c7" {
		t.Errorf("conversation_id = %q, want %q", gotID, "c7")
	}
}

func TestOpenStream_HTTPErrorBeforeStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).OpenStream(context.Background(), "alice", "bad", "hi", "")
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *ServerError", err)
	}
	if se.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d", se.Status)
	}
}

func TestOpenStream_TruncatedStreamYieldsError(t *testing.T) {
	// Server drops the connection before the terminal fragment
	srv := httptest.NewServer(sseHandler(t, chatFrame("partial", false)))
	defer srv.Close()

	s, err := NewClient(srv.URL).OpenStream(context.Background(), "alice", "tok", "hi", "")
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer s.Close()

	events := collectEvents(t, s)
	if len(events) != 2 {
		t.Fatalf("Got %d events, want fragment then error: %+v", len(events), events)
	}
	if events[0].Kind != EventChat || events[0].Fragment != "partial" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Kind != EventError || events[1].Err == nil {
		t.Errorf("events[1] = %+v", events[1])
	}
}

func TestOpenStream_MalformedFragmentSkipped(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t,
		"event: chat\ndata: not json\n\n",
		chatFrame("fine", true),
	))
	defer srv.Close()

	s, err := NewClient(srv.URL).OpenStream(context.Background(), "alice", "tok", "hi", "")
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer s.Close()

	events := collectEvents(t, s)
	if len(events) != 1 {
		t.Fatalf("Got %d events, want 1: %+v", len(events), events)
	}
	if events[0].Fragment != "fine" || !events[0].EndOfMessage {
		t.Errorf("events[0] = %+v", events[0])
	}
}

func TestOpenStream_UnknownEventNamesIgnored(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t,
		"event: heartbeat\ndata: ping\n\n",
		chatFrame("done", true),
	))
	defer srv.Close()

	s, err := NewClient(srv.URL).OpenStream(context.Background(), "alice", "tok", "hi", "")
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer s.Close()

	events := collectEvents(t, s)
	if len(events) != 1 || events[0].Kind != EventChat {
		t.Fatalf("Got %+v, want only the chat event", events)
	}
}

func TestOpenStream_IdleTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		io.WriteString(w, chatFrame("slow", false))
		flusher.Flush()
		<-release // Hold the stream open without sending anything
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL).WithStreamIdleTimeout(100 * time.Millisecond)
	s, err := client.OpenStream(context.Background(), "alice", "tok", "hi", "")
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer s.Close()

	events := collectEvents(t, s)
	last := events[len(events)-1]
	if last.Kind != EventError {
		t.Fatalf("Last event = %+v, want EventError", last)
	}
	if !errors.Is(last.Err, ErrStreamIdle) {
		t.Errorf("Err = %v, want ErrStreamIdle", last.Err)
	}
}

func TestStream_CloseStopsDelivery(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		io.WriteString(w, chatFrame("first", false))
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	s, err := NewClient(srv.URL).OpenStream(context.Background(), "alice", "tok", "hi", "")
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}

	s.Close()
	s.Close() // Idempotent

	// The channel must close; a deliberate close produces no error event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return
			}
			if ev.Kind == EventError {
				t.Errorf("Unexpected error event after Close: %v", ev.Err)
			}
		case <-timeout:
			t.Fatal("Channel did not close after Close()")
		}
	}
}

func TestStream_IDsAreUnique(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, chatFrame("a", true)))
	defer srv.Close()

	client := NewClient(srv.URL)
	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		s, err := client.OpenStream(context.Background(), "alice", "tok", "hi", "")
		if err != nil {
			t.Fatalf("OpenStream() error = %v", err)
		}
		if seen[s.ID()] {
			t.Errorf("Duplicate stream id %q", s.ID())
		}
		seen[s.ID()] = true
		collectEvents(t, s)
		s.Close()
	}
}
