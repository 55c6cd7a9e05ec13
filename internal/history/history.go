// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history manages the conversation list: refreshing it from the
// server, loading a selected conversation's transcript, and deleting
// conversations including the one currently being viewed.
//
// The server is the source of truth. The controller keeps only a display
// snapshot of the last fetch and re-fetches after every state-affecting
// action instead of patching locally.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jeranaias/voxchat-tui/internal/api"
	"github.com/jeranaias/voxchat-tui/internal/model"
	"github.com/jeranaias/voxchat-tui/internal/session"
)

// Controller drives the conversation list for one session.
type Controller struct {
	client *api.Client
	sess   *session.Store

	// PERFORMANCE: Paces refresh bursts (send completion + mid-stream
	// conversation handoff can both ask for one within milliseconds) without
	// ever dropping a refresh.
	limiter *rate.Limiter

	mu      sync.Mutex
	entries []model.ConversationSummary
}

// NewController binds a controller to the transport client and session store.
func NewController(client *api.Client, sess *session.Store) *Controller {
	return &Controller{
		client:  client,
		sess:    sess,
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// Refresh fetches the conversation list and returns it newest-first. The
// server replies oldest-first; ordering for display is the client's job.
func (c *Controller) Refresh(ctx context.Context) ([]model.ConversationSummary, error) {
	user, token, err := c.sess.Credentials()
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	entries, err := c.client.FetchHistory(ctx, user, token)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh history: %w", err)
	}
	model.SortNewestFirst(entries)

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	log.Debug().Int("conversations", len(entries)).Msg("history refreshed")
	return entries, nil
}

// Entries returns the display snapshot from the last refresh.
func (c *Controller) Entries() []model.ConversationSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.ConversationSummary, len(c.entries))
	copy(out, c.entries)
	return out
}

// Select loads the full transcript for id, marks it active, and returns it.
// Transcripts are always fetched wholesale, never partially.
func (c *Controller) Select(ctx context.Context, id string) (*model.Transcript, error) {
	user, token, err := c.sess.Credentials()
	if err != nil {
		return nil, err
	}

	payload, err := c.client.FetchConversation(ctx, user, token, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	t := model.NewTranscript()
	t.ConversationID = payload.ConversationID
	for _, entry := range payload.Conversation {
		t.AddMessage(model.NewMessage(model.Role(entry.Role), entry.Content))
	}

	c.sess.SetActiveConversation(id)
	log.Debug().Str("conversation", id).Int("messages", t.MessageCount()).Msg("conversation selected")
	return t, nil
}

// Delete removes a conversation on the server. Reports whether the deleted
// conversation was the active one, in which case the session's active
// conversation has been cleared and the caller must also clear its rendered
// transcript. Deleting any other conversation leaves both untouched.
func (c *Controller) Delete(ctx context.Context, id string) (clearedActive bool, err error) {
	user, token, err := c.sess.Credentials()
	if err != nil {
		return false, err
	}

	if err := c.client.DeleteConversation(ctx, user, token, id); err != nil {
		return false, fmt.Errorf("failed to delete conversation: %w", err)
	}

	clearedActive = c.sess.ClearIfActive(id)
	log.Debug().Str("conversation", id).Bool("was_active", clearedActive).Msg("conversation deleted")
	return clearedActive, nil
}

// NewConversation clears the active conversation so the next send starts a
// fresh one. No network call: the conversation only exists once the server
// names it mid-stream.
func (c *Controller) NewConversation() {
	c.sess.ClearActiveConversation()
}
