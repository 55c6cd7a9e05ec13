// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jeranaias/voxchat-tui/internal/api"
	"github.com/jeranaias/voxchat-tui/internal/model"
	"github.com/jeranaias/voxchat-tui/internal/session"
)

func loggedInStore() *session.Store {
	s := session.NewStore()
	s.Login("alice", "tok")
	return s
}

func TestRefresh_SortsNewestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Server order is oldest-first
		w.Write([]byte(`{"chat_history": [
			["c1", "Oldest", "2025-01-01 08:00:00"],
			["c2", "Middle", "2025-02-01 08:00:00"],
			["c3", "Newest", "2025-03-01 08:00:00"]
		]}`))
	}))
	defer srv.Close()

	c := NewController(api.NewClient(srv.URL), loggedInStore())
	entries, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	want := []string{"c3", "c2", "c1"}
	for i, id := range want {
		if entries[i].ID != id {
			t.Errorf("entries[%d].ID = %q, want %q", i, entries[i].ID, id)
		}
	}

	snapshot := c.Entries()
	if len(snapshot) != 3 || snapshot[0].Title != "Newest" {
		t.Errorf("Entries() = %+v", snapshot)
	}
}

func TestRefresh_RequiresLogin(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	c := NewController(api.NewClient(srv.URL), session.NewStore())
	if _, err := c.Refresh(context.Background()); !errors.Is(err, session.ErrNotLoggedIn) {
		t.Fatalf("Refresh() error = %v, want ErrNotLoggedIn", err)
	}
	if requests.Load() != 0 {
		t.Errorf("Server saw %d requests, want 0", requests.Load())
	}
}

func TestSelect_LoadsTranscriptAndSetsActive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"conversation_id": "c5", "conversation": [
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "hello there"}
		]}`))
	}))
	defer srv.Close()

	sess := loggedInStore()
	c := NewController(api.NewClient(srv.URL), sess)
	transcript, err := c.Select(context.Background(), "c5")
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	if transcript.MessageCount() != 2 {
		t.Fatalf("MessageCount() = %d, want 2", transcript.MessageCount())
	}
	if transcript.Messages[0].Role != model.RoleUser || transcript.Messages[1].Role != model.RoleAssistant {
		t.Errorf("Unexpected roles: %v, %v", transcript.Messages[0].Role, transcript.Messages[1].Role)
	}
	if transcript.Messages[1].Content != "hello there" {
		t.Errorf("Content = %q", transcript.Messages[1].Content)
	}
	if active, ok := sess.ActiveConversation(); !ok || active != "c5" {
		t.Errorf("ActiveConversation() = %q, %v", active, ok)
	}
}

func TestDelete_ActiveConversationClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Method = %s", r.Method)
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	}))
	defer srv.Close()

	sess := loggedInStore()
	sess.SetActiveConversation("c1")

	c := NewController(api.NewClient(srv.URL), sess)
	cleared, err := c.Delete(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !cleared {
		t.Error("Delete() of the active conversation must report cleared")
	}
	if _, ok := sess.ActiveConversation(); ok {
		t.Error("Active conversation survived its own deletion")
	}
}

func TestDelete_OtherConversationLeavesActiveAlone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	}))
	defer srv.Close()

	sess := loggedInStore()
	sess.SetActiveConversation("c1")

	c := NewController(api.NewClient(srv.URL), sess)
	cleared, err := c.Delete(context.Background(), "c2")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if cleared {
		t.Error("Deleting another conversation must not report cleared")
	}
	if active, _ := sess.ActiveConversation(); active != "c1" {
		t.Errorf("ActiveConversation() = %q, want c1", active)
	}
}

func TestDelete_ServerFailureLeavesSessionUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"nope"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	sess := loggedInStore()
	sess.SetActiveConversation("c1")

	c := NewController(api.NewClient(srv.URL), sess)
	if _, err := c.Delete(context.Background(), "c1"); err == nil {
		t.Fatal("Expected error from failed deletion")
	}
	if active, _ := sess.ActiveConversation(); active != "c1" {
		t.Errorf("ActiveConversation() = %q, want c1 preserved on failure", active)
	}
}

func TestNewConversation_ClearsActiveWithoutNetwork(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	sess := loggedInStore()
	sess.SetActiveConversation("c1")

	c := NewController(api.NewClient(srv.URL), sess)
	c.NewConversation()

	if _, ok := sess.ActiveConversation(); ok {
		t.Error("Active conversation not cleared")
	}
	if requests.Load() != 0 {
		t.Errorf("Server saw %d requests, want 0", requests.Load())
	}
}
