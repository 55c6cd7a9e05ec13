// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// STREAMING: Robust SSE parsing with error handling

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

// MaxEventSize is the maximum allowed size for a single SSE event (64KB).
const MaxEventSize = 64 * 1024

// ErrStreamIdle is emitted when the server stays silent past the configured
// idle timeout while a stream is open.
var ErrStreamIdle = errors.New("stream idle timeout")

// =============================================================================
// STREAM EVENTS
// =============================================================================

// EventKind discriminates the events a reply stream delivers.
type EventKind int

const (
	// EventConversationID carries the identifier the server assigned to a
	// just-created conversation. Sent at most once per stream.
	EventConversationID EventKind = iota
	// EventChat carries one reply fragment.
	EventChat
	// EventError reports a stream-level failure. It is always the last
	// event delivered.
	EventError
)

// StreamEvent is one event from a reply stream.
type StreamEvent struct {
	Kind EventKind

	// For EventConversationID
	ConversationID string

	// For EventChat
	Fragment     string
	EndOfMessage bool

	// For EventError
	Err error
}

// chatPayload is the wire form of a chat event's data field.
type chatPayload struct {
	Response     string `json:"response"`
	EndOfMessage bool   `json:"endOfMessage"`
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event from the stream and returns the event
// name and joined data. Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte
	var size int

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// Flush a trailing event with no terminating blank line
				if len(dataLines) > 0 {
					return eventType, bytes.Join(dataLines, []byte("\n")), nil
				}
				return "", nil, io.EOF
			}
			return "", nil, err
		}

		size += len(line)
		if size > MaxEventSize {
			return "", nil, fmt.Errorf("event too large: %d bytes", size)
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("event:")) {
			eventType = string(bytes.TrimSpace(line[6:]))
		} else if bytes.HasPrefix(line, []byte("data:")) {
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		}
		// Ignore other fields (id:, retry:, comments starting with :)
	}
}

// =============================================================================
// STREAM
// =============================================================================

// Stream is one open reply stream. Events arrive in server order on the
// Events channel; the channel closes after the terminal chat event or an
// EventError. Close is unconditional and idempotent: no buffered events are
// delivered after it returns.
type Stream struct {
	id     string
	events chan StreamEvent

	cancel    context.CancelFunc
	closeOnce sync.Once
	idleFired atomic.Bool
}

// ID returns the client-side identifier of this stream, used to correlate
// log entries and to drop events from abandoned streams.
func (s *Stream) ID() string {
	return s.id
}

// Events returns the event channel.
func (s *Stream) Events() <-chan StreamEvent {
	return s.events
}

// Close tears the stream down. Safe to call from any goroutine and more
// than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
	})
}

// OpenStream sends a chat message and opens the server's reply stream.
// conversationID may be empty: the server then creates a new conversation
// and names it via an EventConversationID mid-stream.
//
// The stream is single-use. There are no reconnects: any transport failure
// surfaces as one EventError and the stream is dead.
func (c *Client) OpenStream(ctx context.Context, user, token, message, conversationID string) (*Stream, error) {
	params := url.Values{}
	params.Set("user", user)
	params.Set("token", token)
	params.Set("message", message)
	if conversationID != "" {
		params.Set("conversation_id", conversationID)
	}

	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/stream-send", params), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// PERFORMANCE: Shared streaming client, lifetime bounded by ctx only
	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stream request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		resp.Body.Close()
		cancel()
		return nil, &ServerError{Status: resp.StatusCode, Message: extractErrorMessage(body)}
	}

	s := &Stream{
		id:     uuid.NewString(),
		events: make(chan StreamEvent, 64),
		cancel: cancel,
	}

	go s.consume(ctx, resp.Body, c.idleTimeout)

	log.Debug().Str("stream", s.id).Bool("new_conversation", conversationID == "").Msg("stream open")
	return s, nil
}

// consume reads SSE events until the terminal chat event, an error, or
// cancellation, then closes the channel.
func (s *Stream) consume(ctx context.Context, body io.ReadCloser, idleTimeout time.Duration) {
	defer close(s.events)
	defer body.Close()

	// Idle watchdog: cancelling the context aborts the blocked read
	var watchdog *time.Timer
	if idleTimeout > 0 {
		watchdog = time.AfterFunc(idleTimeout, func() {
			s.idleFired.Store(true)
			s.cancel()
		})
		defer watchdog.Stop()
	}

	reader := NewSSEReader(body)
	for {
		name, data, err := reader.ReadEvent()
		if watchdog != nil {
			watchdog.Reset(idleTimeout)
		}

		if err != nil {
			switch {
			case s.idleFired.Load():
				err = ErrStreamIdle
			case ctx.Err() != nil:
				// Deliberate close; vanish without an error event
				return
			case err == io.EOF:
				err = errors.New("stream ended before final fragment")
			}
			s.emit(ctx, StreamEvent{Kind: EventError, Err: err})
			return
		}

		switch name {
		case "conversation_id":
			s.emit(ctx, StreamEvent{
				Kind:           EventConversationID,
				ConversationID: string(data),
			})

		case "chat":
			var payload chatPayload
			if err := json.Unmarshal(data, &payload); err != nil {
				// Skip malformed fragments rather than killing the reply
				log.Warn().Str("stream", s.id).Err(err).Msg("malformed chat event")
				continue
			}
			if !s.emit(ctx, StreamEvent{
				Kind:         EventChat,
				Fragment:     payload.Response,
				EndOfMessage: payload.EndOfMessage,
			}) {
				return
			}
			if payload.EndOfMessage {
				log.Debug().Str("stream", s.id).Msg("stream complete")
				return
			}

		default:
			// Unknown event names are ignored for forward compatibility
		}
	}
}

// emit delivers an event unless the stream was closed. Reports whether the
// event was delivered. Buffer space is tried first so a terminal error still
// lands after the watchdog has cancelled the context.
func (s *Stream) emit(ctx context.Context, ev StreamEvent) bool {
	select {
	case s.events <- ev:
		return true
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
