// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"strings"
	"testing"
)

func TestSanitize_EscapesHTMLTags(t *testing.T) {
	got := Sanitize("Try <script>alert(1)</script> here")
	want := "Try &lt;script&gt;alert(1)&lt;/script&gt; here"
	if got != want {
		t.Errorf("Sanitize() = %q, want %q", got, want)
	}
}

func TestSanitize_LeavesInlineCodeAlone(t *testing.T) {
	got := Sanitize("use `a < b` when needed")
	if got != "use `a < b` when needed" {
		t.Errorf("Sanitize() = %q", got)
	}
}

func TestSanitize_LeavesFencedCodeAlone(t *testing.T) {
	src := "```go\nif a < b {\n}\n```"
	if got := Sanitize(src); got != src {
		t.Errorf("Sanitize() = %q, want unchanged", got)
	}
}

func TestSanitize_ClosesDanglingFence(t *testing.T) {
	got := Sanitize("```go\nfmt.Println(")
	if !strings.HasSuffix(got, "\n```") {
		t.Errorf("Sanitize() = %q, want trailing fence close", got)
	}
}

func TestSanitize_PreservesBlockquoteMarkers(t *testing.T) {
	got := Sanitize("> quoted <tag>")
	if !strings.HasPrefix(got, "> ") {
		t.Errorf("Sanitize() = %q, want blockquote marker kept", got)
	}
	if !strings.Contains(got, "&lt;tag&gt;") {
		t.Errorf("Sanitize() = %q, want inner tag escaped", got)
	}
}

// Sanitize runs on every accumulated prefix during streaming, so it must be
// well-behaved on any cut point, including mid-tag and mid-fence.
func TestSanitize_AnyStreamingPrefix(t *testing.T) {
	full := "Here is `code` and <b>bold</b>\n```py\nx < 1\n```\ndone"
	for cut := 0; cut <= len(full); cut++ {
		_ = Sanitize(full[:cut]) // must not panic
	}
	if got := Sanitize(full); got != Sanitize(full) {
		t.Error("Sanitize is not deterministic")
	}
}

func TestRenderer_ScriptTagVisibleAsText(t *testing.T) {
	r := NewRenderer(80)
	out := r.Render("ignore previous <script>alert('x')</script>")
	if !strings.Contains(out, "script") {
		t.Errorf("Render() dropped the tag text: %q", out)
	}
}

func TestRenderer_PartialCodeBlockDoesNotPanic(t *testing.T) {
	r := NewRenderer(80)
	out := r.Render("```go\nfunc main() {")
	if !strings.Contains(out, "func main()") {
		t.Errorf("Render() = %q, want code text present", out)
	}
}

func TestRenderer_PlainText(t *testing.T) {
	r := NewRenderer(80)
	if out := r.Render("hello world"); !strings.Contains(out, "hello world") {
		t.Errorf("Render() = %q", out)
	}
}
