// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/jeranaias/voxchat-tui/internal/model"

// SendRequestMsg asks the application to send the typed message. Emitted by
// the chat pane; the application model owns the transport.
type SendRequestMsg struct {
	Text string
}

// StreamStartMsg tells the pane a reply stream opened. UserText is the
// message that was sent; for voice input it is the transcription, which the
// pane has not seen yet.
type StreamStartMsg struct {
	UserText string
}

// StreamFragmentMsg carries the full accumulated reply text after a
// fragment arrived. Always the whole text, never a delta.
type StreamFragmentMsg struct {
	Accumulated string
}

// StreamCompleteMsg tells the pane the reply finished.
type StreamCompleteMsg struct {
	Final string
	Stats *model.Statistics
}

// StreamErrorMsg tells the pane the stream failed. Whatever text already
// arrived stays visible.
type StreamErrorMsg struct {
	Err error
}

// TranscriptLoadedMsg replaces the pane's transcript, e.g. after selecting
// a conversation from the sidebar.
type TranscriptLoadedMsg struct {
	Transcript *model.Transcript
}

// ClearTranscriptMsg empties the pane, e.g. for a new conversation or after
// the viewed conversation was deleted.
type ClearTranscriptMsg struct{}
