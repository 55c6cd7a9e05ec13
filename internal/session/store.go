// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the single current identity of the client.
package session

import (
	"errors"
	"sync"
	"time"
)

// ErrNotLoggedIn is returned when an operation requires credentials and the
// store holds none. Callers must surface it without issuing any network call.
var ErrNotLoggedIn = errors.New("not logged in")

// =============================================================================
// SESSION STORE
// =============================================================================

// Store tracks the current user, auth token, and active conversation.
// Exactly one Store exists per running client.
//
// The active conversation is meaningful only while logged in; Reset clears
// all three fields together so no stale conversation id survives into the
// next login. All reads and writes go through the mutex so the stream pump
// goroutine and the UI loop never observe a half-updated session.
type Store struct {
	mu sync.Mutex

	user  string
	token string

	// Empty means the next send starts a new conversation.
	activeConversation string

	loginTime    time.Time
	lastActivity time.Time
}

// NewStore creates an empty, logged-out store.
func NewStore() *Store {
	return &Store{}
}

// =============================================================================
// IDENTITY
// =============================================================================

// Login stores the identity returned by the auth endpoint. Any previous
// active conversation is dropped together with the old identity.
func (s *Store) Login(user, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.token = token
	s.activeConversation = ""
	now := time.Now()
	s.loginTime = now
	s.lastActivity = now
}

// Reset clears user, token, and active conversation atomically. Used on
// logout and account deletion.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = ""
	s.token = ""
	s.activeConversation = ""
	s.loginTime = time.Time{}
}

// IsLoggedIn reports whether both user and token are present.
func (s *Store) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != "" && s.token != ""
}

// Credentials returns the current user and token, or ErrNotLoggedIn.
func (s *Store) Credentials() (user, token string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == "" || s.token == "" {
		return "", "", ErrNotLoggedIn
	}
	return s.user, s.token, nil
}

// User returns the current user name, or "" when logged out.
func (s *Store) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// =============================================================================
// ACTIVE CONVERSATION
// =============================================================================

// ActiveConversation returns the active conversation id and whether one is
// set.
func (s *Store) ActiveConversation() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeConversation, s.activeConversation != ""
}

// SetActiveConversation records the conversation the next send appends to.
func (s *Store) SetActiveConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeConversation = id
}

// ClearActiveConversation detaches from the current conversation. The next
// send starts a new one.
func (s *Store) ClearActiveConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeConversation = ""
}

// ResolveConversation writes id as the active conversation only if none is
// set, and reports whether the write happened. This is the guard for the
// server naming a new conversation mid-stream: the first event wins, later
// or duplicate events are ignored.
func (s *Store) ResolveConversation(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeConversation != "" {
		return false
	}
	s.activeConversation = id
	return true
}

// ClearIfActive clears the active conversation only when it equals id, and
// reports whether it did. Used when a conversation is deleted: deleting the
// one currently on screen resets the view, deleting any other leaves the
// session untouched.
func (s *Store) ClearIfActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeConversation != id || id == "" {
		return false
	}
	s.activeConversation = ""
	return true
}

// =============================================================================
// ACTIVITY
// =============================================================================

// RecordActivity updates the last activity timestamp.
func (s *Store) RecordActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// SessionDuration returns how long the current login has been active, or 0
// when logged out.
func (s *Store) SessionDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loginTime.IsZero() {
		return 0
	}
	return time.Since(s.loginTime)
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a consistent read of the whole session.
type Snapshot struct {
	User               string
	Token              string
	ActiveConversation string
	LoggedIn           bool
}

// Snapshot returns all session fields read under one lock acquisition.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		User:               s.user,
		Token:              s.token,
		ActiveConversation: s.activeConversation,
		LoggedIn:           s.user != "" && s.token != "",
	}
}
