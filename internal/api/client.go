// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the voxchat server.
//
// Every call is a single attempt: failures surface to the caller, who
// reports them and waits for a new user action. The server does not
// distinguish bad credentials from other failures at this layer, so auth
// errors and transport errors arrive through the same path.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/voxchat-tui/internal/model"
)

// Configuration constants for the voxchat server API.
const (
	// DefaultTimeout is the default timeout for request/response calls.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	// Shared HTTP client for all request/response calls.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient is used for SSE streams. No client timeout;
	// lifetime is controlled via context so a long reply is not cut off.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// ServerError represents an error reported by the voxchat server, either as
// a non-2xx status or as an {error} payload in a 200 response.
type ServerError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error (HTTP %d)", e.Status)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a client for the voxchat server.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client

	// idleTimeout closes a reply stream after this much server silence.
	// Zero disables the bound.
	idleTimeout time.Duration
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   sharedHTTPClient,
		streamClient: sharedStreamingClient,
	}
}

// WithTimeout sets the timeout for request/response calls. Streams are not
// affected.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	// Clone so the shared pooled client keeps its default timeout
	client := *c.httpClient
	client.Timeout = timeout
	c.httpClient = &client
	return c
}

// WithStreamIdleTimeout bounds how long a stream may go without any event
// before it is treated as failed.
func (c *Client) WithStreamIdleTimeout(d time.Duration) *Client {
	c.idleTimeout = d
	return c
}

// WithHTTPClient replaces both underlying HTTP clients. Used in tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	c.streamClient = hc
	return c
}

// BaseURL returns the configured server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// endpoint builds a server URL with percent-encoded query parameters.
func (c *Client) endpoint(path string, params url.Values) string {
	if len(params) == 0 {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + params.Encode()
}

// =============================================================================
// AUTH OPERATIONS
// =============================================================================

// authResponse is the payload of /get-auth and /register.
type authResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// Authenticate exchanges credentials for a token.
func (c *Client) Authenticate(ctx context.Context, user, password string) (string, error) {
	params := url.Values{}
	params.Set("user", user)
	params.Set("password", password)
	return c.fetchToken(ctx, "/get-auth", params)
}

// Register creates an account and returns its first token.
func (c *Client) Register(ctx context.Context, user, password string) (string, error) {
	params := url.Values{}
	params.Set("user", user)
	params.Set("password", password)
	return c.fetchToken(ctx, "/register", params)
}

func (c *Client) fetchToken(ctx context.Context, path string, params url.Values) (string, error) {
	var resp authResponse
	if err := c.getJSON(ctx, path, params, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		msg := resp.Error
		if msg == "" {
			msg = "no token in response"
		}
		return "", &ServerError{Status: http.StatusOK, Message: msg}
	}
	log.Debug().Str("endpoint", path).Msg("auth ok")
	return resp.Token, nil
}

// ackResponse is the payload of the DELETE endpoints.
type ackResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Logout invalidates the token server-side.
func (c *Client) Logout(ctx context.Context, user, token string) error {
	params := url.Values{}
	params.Set("user", user)
	params.Set("token", token)
	return c.deleteAck(ctx, "/logout", params)
}

// DeleteAccount removes the account. The password is required again as
// confirmation.
func (c *Client) DeleteAccount(ctx context.Context, user, token, password string) error {
	params := url.Values{}
	params.Set("user", user)
	params.Set("token", token)
	params.Set("password", password)
	return c.deleteAck(ctx, "/delete-user", params)
}

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// historyResponse is the payload of /get-chat-history.
type historyResponse struct {
	ChatHistory []model.ConversationSummary `json:"chat_history"`
	Error       string                      `json:"error"`
}

// FetchHistory lists the user's conversations. Entries arrive in server
// order (oldest-first); callers re-sort for display.
func (c *Client) FetchHistory(ctx context.Context, user, token string) ([]model.ConversationSummary, error) {
	params := url.Values{}
	params.Set("user", user)
	params.Set("token", token)

	var resp historyResponse
	if err := c.getJSON(ctx, "/get-chat-history", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &ServerError{Status: http.StatusOK, Message: resp.Error}
	}
	return resp.ChatHistory, nil
}

// ConversationPayload is the full transcript of one conversation as
// returned by /get-conversation.
type ConversationPayload struct {
	ConversationID string `json:"conversation_id"`
	Conversation   []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"conversation"`
	Error string `json:"error"`
}

// FetchConversation loads a complete transcript. Transcripts are always
// fetched wholesale, never partially.
func (c *Client) FetchConversation(ctx context.Context, user, token, conversationID string) (*ConversationPayload, error) {
	params := url.Values{}
	params.Set("user", user)
	params.Set("token", token)
	params.Set("conversation_id", conversationID)

	var resp ConversationPayload
	if err := c.getJSON(ctx, "/get-conversation", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &ServerError{Status: http.StatusOK, Message: resp.Error}
	}
	return &resp, nil
}

// DeleteConversation removes a conversation server-side.
func (c *Client) DeleteConversation(ctx context.Context, user, token, conversationID string) error {
	params := url.Values{}
	params.Set("user", user)
	params.Set("token", token)
	params.Set("conversation_id", conversationID)
	return c.deleteAck(ctx, "/delete-conversation", params)
}

// =============================================================================
// AUDIO UPLOAD
// =============================================================================

// transcriptionResponse is the payload of /upload-audio.
type transcriptionResponse struct {
	Transcription string `json:"transcription"`
	Error         string `json:"error"`
}

// UploadAudio sends recorded audio for transcription. The audio reader is
// consumed fully; filename is informational only.
func (c *Client) UploadAudio(ctx context.Context, user, token, filename string, audio io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("audioFile", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("failed to read audio: %w", err)
	}
	if err := mw.WriteField("user", user); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.WriteField("token", token); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/upload-audio", nil), &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp transcriptionResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.Transcription == "" {
		msg := resp.Error
		if msg == "" {
			msg = "no transcription in response"
		}
		return "", &ServerError{Status: http.StatusOK, Message: msg}
	}
	return resp.Transcription, nil
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, params), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) deleteAck(ctx context.Context, path string, params url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint(path, params), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	var resp ackResponse
	if err := c.do(req, &resp); err != nil {
		return err
	}
	if resp.Message == "" && resp.Error != "" {
		return &ServerError{Status: http.StatusOK, Message: resp.Error}
	}
	return nil
}

// do performs one attempt of a request/response call and decodes the JSON
// body into out.
func (c *Client) do(req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Str("path", req.URL.Path).Err(err).Msg("request failed")
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// SECURITY: Bound the body read regardless of Content-Length
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Debug().
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request done")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServerError{Status: resp.StatusCode, Message: extractErrorMessage(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// extractErrorMessage pulls an {error} field from an error body when the
// server sent one.
func extractErrorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}

// IsServerError reports whether err is a ServerError.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}
