// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown renders assistant replies for terminal display.
//
// Replies arrive as fragments and are re-rendered from the accumulated text
// on every fragment, so rendering must behave sensibly on incomplete input:
// an unterminated code fence is closed before rendering, and raw HTML is
// escaped so it shows up as literal text instead of being swallowed by the
// markdown engine.
package markdown

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer converts markdown to styled terminal output. Rendering never
// fails: if the underlying renderer is unavailable or errors, the sanitized
// source text is returned as-is.
type Renderer struct {
	tr *glamour.TermRenderer
}

// NewRenderer creates a renderer wrapping at the given column width.
func NewRenderer(wordWrap int) *Renderer {
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		// Fallback to plain text if renderer initialization fails
		tr = nil
	}
	return &Renderer{tr: tr}
}

// Render renders markdown content for terminal display.
func (r *Renderer) Render(content string) string {
	safe := Sanitize(content)
	if r.tr == nil {
		return safe
	}
	out, err := r.tr.Render(safe)
	if err != nil {
		return safe
	}
	return out
}

// Sanitize prepares possibly-incomplete markdown for rendering. It escapes
// angle brackets outside code regions, so server-sent HTML like <script>
// renders as visible text, and closes a dangling code fence left open by an
// in-flight fragment. Pure function: the same accumulated text always yields
// the same result regardless of how it was chunked on the wire.
func Sanitize(content string) string {
	var b strings.Builder
	b.Grow(len(content) + 16)

	inFence := false
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if isFenceDelimiter(line) {
			inFence = !inFence
			b.WriteString(line)
		} else if inFence {
			// Fenced code is displayed verbatim
			b.WriteString(line)
		} else {
			b.WriteString(escapeOutsideInlineCode(line))
		}
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}

	if inFence {
		b.WriteString("\n```")
	}
	return b.String()
}

// isFenceDelimiter reports whether a line opens or closes a fenced code
// block. An opening fence may carry an info string ("```go").
func isFenceDelimiter(line string) bool {
	trimmed := strings.TrimLeft(line, " ")
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

// escapeOutsideInlineCode entity-escapes < and > except inside `inline code`
// spans, where the markdown engine already treats them literally. Leading
// blockquote markers stay intact.
func escapeOutsideInlineCode(line string) string {
	var b strings.Builder
	b.Grow(len(line))

	rest := line
	for strings.HasPrefix(rest, ">") || strings.HasPrefix(rest, " ") {
		b.WriteByte(rest[0])
		rest = rest[1:]
	}

	inCode := false
	for _, r := range rest {
		switch {
		case r == '`':
			inCode = !inCode
			b.WriteRune(r)
		case inCode:
			b.WriteRune(r)
		case r == '<':
			b.WriteString("&lt;")
		case r == '>':
			b.WriteString("&gt;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
