// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assembler

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/voxchat-tui/internal/api"
	"github.com/jeranaias/voxchat-tui/internal/session"
)

// ErrSendInFlight rejects a send attempted while a reply is still streaming.
// Only one stream may be open at a time; the caller re-enables sending when
// the in-flight assembler reaches a terminal state.
var ErrSendInFlight = errors.New("a reply is already streaming")

// Sender is the single entry point for outgoing chat messages. It checks
// login state before touching the network, serializes sends, and hands each
// accepted message to a fresh Assembler.
type Sender struct {
	mu     sync.Mutex
	busy   bool
	client *api.Client
	sess   *session.Store
}

// NewSender binds a sender to the transport client and session store.
func NewSender(client *api.Client, sess *session.Store) *Sender {
	return &Sender{client: client, sess: sess}
}

// Busy reports whether a reply stream is currently open.
func (s *Sender) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Send opens a reply stream for message and runs an assembler over it in a
// background goroutine. Returns the assembler so the caller can inspect
// state and accumulated text; terminal outcomes arrive through hooks.
//
// A logged-out session is rejected immediately with session.ErrNotLoggedIn,
// before any network activity.
func (s *Sender) Send(ctx context.Context, message string, hooks Hooks) (*Assembler, error) {
	user, token, err := s.sess.Credentials()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrSendInFlight
	}
	s.busy = true
	s.mu.Unlock()

	conversationID, _ := s.sess.ActiveConversation()

	stream, err := s.client.OpenStream(ctx, user, token, message, conversationID)
	if err != nil {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
		return nil, err
	}

	log.Debug().Str("user", user).Bool("new_conversation", conversationID == "").Msg("message sent")

	a := New(s.sess, hooks)
	go func() {
		a.Run(stream)
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()
	return a, nil
}
