// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/voxchat-tui/internal/config"
	"github.com/jeranaias/voxchat-tui/internal/markdown"
	"github.com/jeranaias/voxchat-tui/internal/model"
	"github.com/jeranaias/voxchat-tui/internal/ui/styles"
)

// Model is the Bubble Tea model for the chat pane: the transcript viewport
// and the compose input.
type Model struct {
	theme *styles.Theme
	cfg   config.UIConfig

	transcript *model.Transcript
	renderer   *markdown.Renderer

	// In-flight reply. streamText mirrors the assembler's accumulated text;
	// it becomes a transcript message only on completion or error.
	streaming  bool
	streamText string
	limiter    *FrameLimiter
	lastStats  *model.Statistics

	// Submitted message held until the send is accepted, so the user's line
	// only appears once the stream opens.
	pendingUserText string

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int
}

// New creates an empty chat pane.
func New(theme *styles.Theme, cfg config.UIConfig) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 30,
	}

	wrap := cfg.WordWrap
	if wrap <= 0 {
		wrap = 80
	}

	return Model{
		theme:      theme,
		cfg:        cfg,
		transcript: model.NewTranscript(),
		renderer:   markdown.NewRenderer(wrap),
		limiter:    NewFrameLimiter(),
		viewport:   vp,
		input:      ti,
		spinner:    sp,
	}
}

// Transcript exposes the pane's transcript for the application model.
func (m *Model) Transcript() *model.Transcript {
	return m.transcript
}

// Streaming reports whether a reply is in flight.
func (m *Model) Streaming() bool {
	return m.streaming
}

// Input returns the compose input's current contents.
func (m *Model) Input() string {
	return m.input.Value()
}

// SetInput replaces the compose input's contents, e.g. to hand the user a
// transcription that could not be sent right away.
func (m *Model) SetInput(text string) {
	m.input.SetValue(text)
	m.input.CursorEnd()
}

// SetSize lays the pane out inside the given cell rectangle.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	// Input box border takes 3 rows
	m.viewport.Width = width
	m.viewport.Height = height - 3
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
	m.refreshViewport()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamStartMsg:
		m.streaming = true
		m.streamText = ""
		m.limiter.Reset()
		userText := msg.UserText
		if userText == "" {
			userText = m.pendingUserText
		}
		m.pendingUserText = ""
		if userText != "" {
			m.transcript.AddUserMessage(userText)
		}
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, streamTickCmd()

	case StreamFragmentMsg:
		m.limiter.Set(msg.Accumulated)
		return m, nil

	case StreamTickMsg:
		if !m.streaming {
			return m, nil
		}
		if text, ok := m.limiter.Flush(); ok {
			m.streamText = text
			m.refreshViewport()
		}
		return m, streamTickCmd()

	case StreamCompleteMsg:
		m.finishStream(msg.Final, msg.Stats)
		return m, nil

	case StreamErrorMsg:
		// The partial reply stays; the failure is reported alongside it
		if text, ok := m.limiter.Force(); ok {
			m.streamText = text
		}
		if m.streamText != "" {
			m.finishStream(m.streamText, nil)
		} else {
			m.streaming = false
			m.limiter.Reset()
		}
		m.transcript.AddSystemMessage("reply interrupted: " + msg.Err.Error())
		m.refreshViewport()
		return m, nil

	case TranscriptLoadedMsg:
		m.transcript = msg.Transcript
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, nil

	case ClearTranscriptMsg:
		m.transcript.Clear()
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if m.streaming {
			return m, nil // send is disabled while a reply is open
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.SetValue("")
		m.pendingUserText = text
		return m, func() tea.Msg { return SendRequestMsg{Text: text} }

	case "pgup", "pgdown", "up", "down", "home", "end":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// finishStream turns the in-flight text into a transcript message.
func (m *Model) finishStream(final string, stats *model.Statistics) {
	m.streaming = false
	m.streamText = ""
	m.limiter.Reset()
	m.lastStats = stats

	msg := m.transcript.AddAssistantMessage()
	msg.AppendFragment(final)
	m.transcript.FinalizeLast(stats)

	m.refreshViewport()
	m.viewport.GotoBottom()
}

// refreshViewport re-renders the whole transcript plus any in-flight reply.
func (m *Model) refreshViewport() {
	var b strings.Builder

	for _, msg := range m.transcript.Messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}

	if m.streaming {
		b.WriteString(m.theme.AssistantLabel.Render("Assistant " + m.spinner.View()))
		b.WriteString("\n")
		b.WriteString(m.renderer.Render(m.streamText))
		b.WriteString("\n")
	}

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(b.String())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderMessage(msg *model.Message) string {
	var b strings.Builder

	label := msg.Role.DisplayName()
	switch msg.Role {
	case model.RoleUser:
		b.WriteString(m.theme.UserLabel.Render(label))
	case model.RoleAssistant:
		b.WriteString(m.theme.AssistantLabel.Render(label))
	default:
		return m.theme.SystemText.Render(msg.GetDisplayContent()) + "\n"
	}

	if m.cfg.ShowTimestamps {
		b.WriteString(" ")
		b.WriteString(m.theme.Timestamp.Render(msg.Timestamp.Format("15:04")))
	}
	b.WriteString("\n")

	if msg.Role == model.RoleAssistant {
		b.WriteString(m.renderer.Render(msg.GetDisplayContent()))
		if m.cfg.ShowStreamStats && msg.TotalDuration > 0 {
			b.WriteString(m.theme.Timestamp.Render(msg.FormatStats()))
			b.WriteString("\n")
		}
	} else {
		b.WriteString(msg.GetDisplayContent())
		b.WriteString("\n")
	}
	return b.String()
}

// View implements tea.Model.
func (m Model) View() string {
	inputView := m.input.View()
	if m.streaming {
		inputView = m.theme.Help.Render("waiting for reply...")
	}
	return m.viewport.View() + "\n" +
		m.theme.InputBox.Width(m.width-2).Render(inputView)
}
