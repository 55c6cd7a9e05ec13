// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get-auth" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("user") != "alice" || r.URL.Query().Get("password") != "s3cret" {
			t.Errorf("Unexpected query: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	}))
	defer srv.Close()

	token, err := NewClient(srv.URL).Authenticate(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestAuthenticate_ErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "bad credentials"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Authenticate(context.Background(), "alice", "wrong")
	require.Error(t, err)

	var se *ServerError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Message, "bad credentials")
}

func TestAuthenticate_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Authenticate(context.Background(), "alice", "wrong")
	var se *ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Status)
}

func TestQueryParameters_PercentEncoded(t *testing.T) {
	var gotRaw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRaw = r.URL.RawQuery
		// The router must still see the decoded values
		if r.URL.Query().Get("password") != "p&ss wörd=1" {
			t.Errorf("Decoded password = %q", r.URL.Query().Get("password"))
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "t"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Authenticate(context.Background(), "alice", "p&ss wörd=1")
	require.NoError(t, err)
	assert.NotContains(t, gotRaw, " ", "raw query must be percent-encoded")
}

func TestNoRetries_SingleAttemptPerCall(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Authenticate(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "a failed call must not be retried")
}

func TestLogout_UsesDelete(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		json.NewEncoder(w).Encode(map[string]string{"message": "logged out"})
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Logout(context.Background(), "alice", "tok")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestDeleteAccount_SendsPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("user") != "alice" || q.Get("token") != "tok" || q.Get("password") != "pw" {
			t.Errorf("Unexpected query: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "deleted"})
	}))
	defer srv.Close()

	err := NewClient(srv.URL).DeleteAccount(context.Background(), "alice", "tok", "pw")
	require.NoError(t, err)
}

func TestFetchHistory_DecodesTriples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chat_history": [
			["c1", "First", "2025-01-01 08:00:00"],
			["c2", "Second", "2025-01-02 08:00:00"]
		]}`))
	}))
	defer srv.Close()

	entries, err := NewClient(srv.URL).FetchHistory(context.Background(), "alice", "tok")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c1", entries[0].ID)
	assert.Equal(t, "Second", entries[1].Title)
}

func TestFetchConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("conversation_id") != "c9" {
			t.Errorf("conversation_id = %q", r.URL.Query().Get("conversation_id"))
		}
		w.Write([]byte(`{"conversation_id": "c9", "conversation": [
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "hello"}
		]}`))
	}))
	defer srv.Close()

	payload, err := NewClient(srv.URL).FetchConversation(context.Background(), "alice", "tok", "c9")
	require.NoError(t, err)
	assert.Equal(t, "c9", payload.ConversationID)
	require.Len(t, payload.Conversation, 2)
	assert.Equal(t, "assistant", payload.Conversation[1].Role)
	assert.Equal(t, "hello", payload.Conversation[1].Content)
}

func TestDeleteConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Method = %s", r.Method)
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	}))
	defer srv.Close()

	err := NewClient(srv.URL).DeleteConversation(context.Background(), "alice", "tok", "c1")
	require.NoError(t, err)
}

func TestUploadAudio_MultipartFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "alice", r.FormValue("user"))
		assert.Equal(t, "tok", r.FormValue("token"))

		file, header, err := r.FormFile("audioFile")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "clip.wav", header.Filename)

		json.NewEncoder(w).Encode(map[string]string{"transcription": "hello world"})
	}))
	defer srv.Close()

	text, err := NewClient(srv.URL).UploadAudio(
		context.Background(), "alice", "tok", "clip.wav", strings.NewReader("RIFFfake"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestUploadAudio_ErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "transcription unavailable"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).UploadAudio(
		context.Background(), "alice", "tok", "clip.wav", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcription unavailable")
}
