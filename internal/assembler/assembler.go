// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assembler reassembles one streamed assistant reply from its
// fragments and reconciles the mid-stream conversation-id handoff with the
// session store.
//
// One Assembler serves one send. It consumes the reply stream's events in
// arrival order, accumulates text, invokes a full re-render after every
// fragment, and settles into exactly one of two terminal states: success
// (terminal fragment seen, completion hook fired once) or error (partial
// text preserved, completion hook never fired).
package assembler

import (
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/voxchat-tui/internal/api"
	"github.com/jeranaias/voxchat-tui/internal/session"
)

// ErrStreamClosed reports a reply stream that ended without delivering its
// terminal fragment or an error event.
var ErrStreamClosed = errors.New("stream closed before completion")

// =============================================================================
// STATES
// =============================================================================

// State is the lifecycle position of one reply assembly.
type State int

const (
	// StateIdle: no send has started.
	StateIdle State = iota
	// StateOpen: the stream is live and fragments are arriving.
	StateOpen
	// StateClosedSuccess: the terminal fragment arrived; accumulated text is final.
	StateClosedSuccess
	// StateClosedError: the stream failed; accumulated text is partial but kept.
	StateClosedError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateClosedSuccess:
		return "closed(success)"
	case StateClosedError:
		return "closed(error)"
	default:
		return "unknown"
	}
}

// =============================================================================
// HOOKS
// =============================================================================

// Hooks are the assembler's outward edges. All are optional; nil hooks are
// skipped. Hooks are called from the goroutine running Run, in event order.
type Hooks struct {
	// OnRender receives the full accumulated text after every fragment.
	// STREAMING: Full text, not a delta: formatting constructs span fragment
	// boundaries, so the display layer must re-derive markup from scratch.
	OnRender func(accumulated string)

	// OnConversationResolved fires at most once, when the server names a
	// conversation the client started without an id and the session store
	// accepts it. Typical use: kick off a history refresh. The assembler does
	// not wait for that work; fragments keep flowing meanwhile.
	OnConversationResolved func(id string)

	// OnComplete fires exactly once on success, after the final render, with
	// the final accumulated text.
	OnComplete func(final string)

	// OnError fires on transition to the error state. The text accumulated
	// so far stays visible; this hook only reports why no more is coming.
	OnError func(err error)
}

// =============================================================================
// ASSEMBLER
// =============================================================================

// Assembler drives one reply stream to a terminal state. Not reusable:
// create a new one per send.
type Assembler struct {
	mu      sync.Mutex
	state   State
	text    strings.Builder
	err     error
	session *session.Store
	hooks   Hooks
}

// New creates an idle assembler bound to the session store.
func New(sess *session.Store, hooks Hooks) *Assembler {
	return &Assembler{
		state:   StateIdle,
		session: sess,
		hooks:   hooks,
	}
}

// State returns the current lifecycle state.
func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Accumulated returns the text assembled so far. After an error state this
// is the preserved partial reply.
func (a *Assembler) Accumulated() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text.String()
}

// Err returns the stream failure, or nil outside the error state.
func (a *Assembler) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Run consumes the stream until a terminal state and closes it. Blocks until
// done; callers wanting concurrency run it in a goroutine. Calling Run on an
// assembler that already left Idle is a no-op.
func (a *Assembler) Run(stream *api.Stream) {
	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return
	}
	a.state = StateOpen
	a.mu.Unlock()

	defer stream.Close()

	for ev := range stream.Events() {
		switch ev.Kind {
		case api.EventConversationID:
			a.resolveConversation(ev.ConversationID)

		case api.EventChat:
			if a.appendAndRender(ev.Fragment, ev.EndOfMessage) {
				return
			}

		case api.EventError:
			a.fail(ev.Err)
			return
		}
	}

	// Channel closed with no terminal event: a deliberate shutdown mid-reply
	a.fail(ErrStreamClosed)
}

// resolveConversation applies the first-event-wins rule. The session store
// is the arbiter: a second event, or one arriving while a conversation is
// already active, changes nothing and fires no hook.
func (a *Assembler) resolveConversation(id string) {
	if id == "" {
		return
	}
	if !a.session.ResolveConversation(id) {
		log.Debug().Str("conversation", id).Msg("conversation id ignored, already resolved")
		return
	}
	log.Debug().Str("conversation", id).Msg("conversation resolved mid-stream")
	if a.hooks.OnConversationResolved != nil {
		a.hooks.OnConversationResolved(id)
	}
}

// appendAndRender accumulates one fragment and re-renders. Reports whether
// the fragment was terminal, in which case the completion hook has fired.
func (a *Assembler) appendAndRender(fragment string, terminal bool) bool {
	a.mu.Lock()
	a.text.WriteString(fragment)
	accumulated := a.text.String()
	if terminal {
		a.state = StateClosedSuccess
	}
	a.mu.Unlock()

	if a.hooks.OnRender != nil {
		a.hooks.OnRender(accumulated)
	}
	if terminal && a.hooks.OnComplete != nil {
		// After the final render, exactly once
		a.hooks.OnComplete(accumulated)
	}
	return terminal
}

// fail moves to the error state. Accumulated text is left in place.
func (a *Assembler) fail(err error) {
	a.mu.Lock()
	if a.state != StateOpen {
		a.mu.Unlock()
		return
	}
	a.state = StateClosedError
	a.err = err
	a.mu.Unlock()

	log.Warn().Err(err).Msg("reply stream failed")
	if a.hooks.OnError != nil {
		a.hooks.OnError(err)
	}
}
