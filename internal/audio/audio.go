// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audio bridges the chat client to external capture and playback
// tools. Recording shells out to a configured command (sox by default) that
// writes a WAV file; playback pipes text into a speech synthesizer (espeak
// by default). Both tools are user-replaceable through configuration, so
// this package never assumes a particular binary beyond argv[0] existing on
// PATH.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/voxchat-tui/internal/config"
)

var (
	// ErrDisabled means audio is switched off in configuration.
	ErrDisabled = errors.New("audio is disabled")
	// ErrNotRecording is returned by Stop without a matching Start.
	ErrNotRecording = errors.New("no recording in progress")
	// ErrAlreadyRecording rejects a second Start while one is live.
	ErrAlreadyRecording = errors.New("recording already in progress")
)

// =============================================================================
// RECORDER
// =============================================================================

// Recorder captures microphone audio to a temporary WAV file via an
// external command. One capture at a time; Stop always releases the
// capture process, whatever the outcome.
type Recorder struct {
	cfg config.AudioConfig

	mu   sync.Mutex
	cmd  *exec.Cmd
	path string

	// MaxRecordSecs watchdog
	watchdog *time.Timer
}

// NewRecorder creates a recorder from the audio configuration.
func NewRecorder(cfg config.AudioConfig) *Recorder {
	return &Recorder{cfg: cfg}
}

// Recording reports whether a capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd != nil
}

// Start launches the capture process writing to a fresh temp file.
func (r *Recorder) Start() error {
	if !r.cfg.Enabled {
		return ErrDisabled
	}
	if len(r.cfg.RecordCommand) == 0 {
		return errors.New("no record command configured")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return ErrAlreadyRecording
	}

	f, err := os.CreateTemp("", "voxchat-rec-*.wav")
	if err != nil {
		return fmt.Errorf("failed to create capture file: %w", err)
	}
	path := f.Name()
	f.Close()

	// The capture command receives the output path as its final argument,
	// e.g. ["sox", "-d", "-t", "wav"] + path
	args := append(append([]string(nil), r.cfg.RecordCommand[1:]...), path)
	cmd := exec.Command(r.cfg.RecordCommand[0], args...)
	if err := cmd.Start(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to start capture: %w", err)
	}

	r.cmd = cmd
	r.path = path

	if r.cfg.MaxRecordSecs > 0 {
		limit := time.Duration(r.cfg.MaxRecordSecs) * time.Second
		r.watchdog = time.AfterFunc(limit, func() {
			log.Warn().Dur("limit", limit).Msg("recording hit the duration cap")
			r.interrupt()
		})
	}

	log.Debug().Str("path", path).Msg("recording started")
	return nil
}

// Stop ends the capture and returns the path of the recorded WAV file. The
// caller owns the file and removes it after upload. The capture process is
// always released, even when it exited abnormally.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	cmd := r.cmd
	path := r.path
	watchdog := r.watchdog
	r.cmd = nil
	r.path = ""
	r.watchdog = nil
	r.mu.Unlock()

	if cmd == nil {
		return "", ErrNotRecording
	}
	if watchdog != nil {
		watchdog.Stop()
	}

	// Capture tools treat SIGINT as "finish the file and exit"
	if cmd.Process != nil {
		cmd.Process.Signal(os.Interrupt)
	}
	err := cmd.Wait()

	info, statErr := os.Stat(path)
	if statErr != nil || info.Size() == 0 {
		os.Remove(path)
		if err == nil {
			err = errors.New("capture produced no audio")
		}
		return "", fmt.Errorf("recording failed: %w", err)
	}

	log.Debug().Str("path", path).Int64("bytes", info.Size()).Msg("recording stopped")
	return path, nil
}

// interrupt signals the capture command without clearing state; the
// subsequent Stop call collects the file as usual.
func (r *Recorder) interrupt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil && r.cmd.Process != nil {
		r.cmd.Process.Signal(os.Interrupt)
	}
}

// =============================================================================
// SPEAKER
// =============================================================================

// Speaker reads text aloud by piping it into an external synthesizer.
// At most one playback runs at a time; Stop interrupts it.
type Speaker struct {
	cfg config.AudioConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    int
}

// NewSpeaker creates a speaker from the audio configuration.
func NewSpeaker(cfg config.AudioConfig) *Speaker {
	return &Speaker{cfg: cfg}
}

// Speaking reports whether a playback is in progress.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Say speaks text, blocking until playback finishes, Stop is called, or
// ctx is cancelled. A Say while another playback runs interrupts it.
func (s *Speaker) Say(ctx context.Context, text string) error {
	if !s.cfg.Enabled || !s.cfg.SpeakReplies {
		return ErrDisabled
	}
	if len(s.cfg.SpeakCommand) == 0 {
		return errors.New("no speak command configured")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		// A newer Say may have replaced us already
		if s.gen == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
	}()

	cmd := exec.CommandContext(ctx, s.cfg.SpeakCommand[0], s.cfg.SpeakCommand[1:]...)
	cmd.Stdin = bytes.NewReader([]byte(text))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil // interrupted on purpose
		}
		return fmt.Errorf("speech playback failed: %w", err)
	}
	return nil
}

// Stop interrupts the current playback, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
