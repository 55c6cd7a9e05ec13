// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package login provides the login and signup form for the voxchat TUI.
package login

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/voxchat-tui/internal/ui/styles"
)

// SubmitMsg is emitted when the user submits the form. The application
// model performs the actual network call.
type SubmitMsg struct {
	User     string
	Password string
	Signup   bool
}

type focusField int

const (
	focusUser focusField = iota
	focusPassword
)

// Model is the Bubble Tea model for the login/signup form.
type Model struct {
	theme *styles.Theme

	user     textinput.Model
	password textinput.Model
	focus    focusField

	signup  bool
	busy    bool
	errText string

	width  int
	height int
}

// New creates the form with the user field focused.
func New(theme *styles.Theme) Model {
	user := textinput.New()
	user.Prompt = "> "
	user.Placeholder = "username"
	user.CharLimit = 64
	user.Focus()

	password := textinput.New()
	password.Prompt = "> "
	password.Placeholder = "password"
	password.CharLimit = 128
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'

	return Model{theme: theme, user: user, password: password}
}

// PrefillUser fills in the username field, e.g. from the --user flag.
func (m *Model) PrefillUser(user string) {
	m.user.SetValue(user)
}

// SetSize sets the terminal dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetBusy disables submission while an auth request is in flight.
func (m *Model) SetBusy(busy bool) {
	m.busy = busy
}

// SetError shows a failure line under the form.
func (m *Model) SetError(text string) {
	m.errText = text
}

// Reset clears both fields, e.g. after logout.
func (m *Model) Reset() {
	m.user.SetValue("")
	m.password.SetValue("")
	m.errText = ""
	m.busy = false
	m.focus = focusUser
	m.user.Focus()
	m.password.Blur()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "shift+tab":
			m.toggleFocus()
			return m, nil

		case "ctrl+s":
			// Switch between login and signup
			m.signup = !m.signup
			m.errText = ""
			return m, nil

		case "enter":
			if m.focus == focusUser {
				m.toggleFocus()
				return m, nil
			}
			return m, m.submit()
		}
	}

	var cmd tea.Cmd
	if m.focus == focusUser {
		m.user, cmd = m.user.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m *Model) toggleFocus() {
	if m.focus == focusUser {
		m.focus = focusPassword
		m.user.Blur()
		m.password.Focus()
	} else {
		m.focus = focusUser
		m.password.Blur()
		m.user.Focus()
	}
}

func (m *Model) submit() tea.Cmd {
	if m.busy {
		return nil
	}
	user := strings.TrimSpace(m.user.Value())
	password := m.password.Value()
	if user == "" || password == "" {
		m.errText = "username and password are required"
		return nil
	}
	signup := m.signup
	return func() tea.Msg {
		return SubmitMsg{User: user, Password: password, Signup: signup}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	title := "voxchat login"
	action := "log in"
	if m.signup {
		title = "voxchat signup"
		action = "create account"
	}

	var b strings.Builder
	b.WriteString(m.theme.Title.Render(title))
	b.WriteString("\n\n")
	b.WriteString(m.user.View())
	b.WriteString("\n")
	b.WriteString(m.password.View())
	b.WriteString("\n\n")

	switch {
	case m.busy:
		b.WriteString(m.theme.Help.Render("contacting server..."))
	case m.errText != "":
		b.WriteString(styles.RenderError(m.errText))
	default:
		b.WriteString(m.theme.Help.Render("enter to " + action + "  ctrl+s switch mode  ctrl+c quit"))
	}

	form := m.theme.InputBox.Padding(1, 2).Render(b.String())
	if m.width == 0 || m.height == 0 {
		return form
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, form)
}
