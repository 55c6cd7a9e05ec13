// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for transcripts and messages.
//
// # Key Types
//
//   - Transcript: the client's working copy of one conversation
//   - Message: a single message with role, content, and streaming state
//   - ConversationSummary: one entry of the server's history listing
//   - Role: message role enumeration (user, assistant, system)
//
// The server owns conversation persistence. A Transcript is replaced
// wholesale when the user selects a conversation, and its ConversationID
// stays empty until the server names the conversation on the first send.
//
// # Usage
//
//	tr := model.NewTranscript()
//	tr.AddUserMessage("hello")
//	reply := tr.AddAssistantMessage()
//	reply.AppendFragment("hi ")
//	reply.AppendFragment("there")
//	reply.FinalizeStream(nil)
package model
