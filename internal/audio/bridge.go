// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/voxchat-tui/internal/api"
	"github.com/jeranaias/voxchat-tui/internal/session"
)

// Transcribe uploads a recorded WAV file for transcription and returns the
// recognized text. The file is removed afterwards regardless of outcome; it
// has no value once the upload attempt is over.
func Transcribe(ctx context.Context, client *api.Client, sess *session.Store, path string) (string, error) {
	defer os.Remove(path)

	user, token, err := sess.Credentials()
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	text, err := client.UploadAudio(ctx, user, token, filepath.Base(path), f)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	log.Debug().Int("chars", len(text)).Msg("audio transcribed")
	return text, nil
}
