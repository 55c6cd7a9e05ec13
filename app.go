// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/voxchat-tui/internal/api"
	"github.com/jeranaias/voxchat-tui/internal/assembler"
	"github.com/jeranaias/voxchat-tui/internal/audio"
	"github.com/jeranaias/voxchat-tui/internal/config"
	"github.com/jeranaias/voxchat-tui/internal/history"
	"github.com/jeranaias/voxchat-tui/internal/model"
	"github.com/jeranaias/voxchat-tui/internal/session"
	"github.com/jeranaias/voxchat-tui/internal/ui/chat"
	"github.com/jeranaias/voxchat-tui/internal/ui/components"
	"github.com/jeranaias/voxchat-tui/internal/ui/login"
	"github.com/jeranaias/voxchat-tui/internal/ui/styles"
)

// =============================================================================
// APPLICATION STATE
// =============================================================================

type appState int

const (
	stateLogin appState = iota
	stateChat
)

const sidebarWidth = 28

// appDeps bundles the long-lived collaborators the application model wires
// together.
type appDeps struct {
	cfg      *config.Config
	theme    *styles.Theme
	client   *api.Client
	session  *session.Store
	sender   *assembler.Sender
	history  *history.Controller
	recorder *audio.Recorder
	speaker  *audio.Speaker
	user     string
}

// appModel is the root Bubble Tea model: it routes keys and messages between
// the login form, the sidebar, the chat pane and the status bar.
type appModel struct {
	appDeps

	state appState

	login   login.Model
	chat    chat.Model
	sidebar components.Sidebar
	status  components.StatusBar

	// When true, up/down/enter act on the conversation list instead of
	// the compose input.
	focusSidebar bool

	// Conversation id awaiting 'y' confirmation, empty when none.
	pendingDelete string

	// Account deletion asks for the password again before the request.
	promptingAccount bool
	accountInput     textinput.Model

	// Set when the in-flight message came from a voice recording, so the
	// finished reply is spoken back.
	speakNext bool

	width  int
	height int
}

func newApp(deps appDeps) appModel {
	lg := login.New(deps.theme)
	if deps.user != "" {
		lg.PrefillUser(deps.user)
	}
	return appModel{
		appDeps: deps,
		state:   stateLogin,
		login:   lg,
		chat:    chat.New(deps.theme, deps.cfg.UI),
		sidebar: components.NewSidebar(deps.theme),
		status:  components.NewStatusBar(deps.theme),
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

type authResultMsg struct {
	user   string
	token  string
	signup bool
	err    error
}

type historyMsg struct {
	entries []model.ConversationSummary
	err     error
}

type conversationLoadedMsg struct {
	id         string
	transcript *model.Transcript
	err        error
}

type deleteResultMsg struct {
	id            string
	clearedActive bool
	err           error
}

type transcriptionMsg struct {
	text string
	err  error
}

type conversationResolvedMsg struct {
	id string
}

type streamFailedMsg struct {
	err error
}

type logoutMsg struct {
	err error
}

type configReloadedMsg struct {
	cfg *config.Config
}

type accountDeletedMsg struct {
	err error
}

type spokenMsg struct {
	err error
}

// =============================================================================
// TEA MODEL
// =============================================================================

// Init implements tea.Model.
func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.login.Init(), m.chat.Init())
}

// Update implements tea.Model.
func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.applySize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case login.SubmitMsg:
		m.login.SetBusy(true)
		m.login.SetError("")
		return m, m.authenticateCmd(msg.User, msg.Password, msg.Signup)

	case authResultMsg:
		return m.handleAuthResult(msg)

	case historyMsg:
		if msg.err != nil {
			m.status.SetStatus("history: "+msg.err.Error(), true)
			return m, nil
		}
		m.sidebar.SetEntries(msg.entries)
		if id, ok := m.session.ActiveConversation(); ok {
			m.sidebar.SetActive(id)
		}
		return m, nil

	case conversationLoadedMsg:
		if msg.err != nil {
			m.status.SetStatus("open: "+msg.err.Error(), true)
			return m, nil
		}
		m.sidebar.SetActive(msg.id)
		m.focusSidebar = false
		m.status.ClearStatus()
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(chat.TranscriptLoadedMsg{Transcript: msg.transcript})
		return m, cmd

	case deleteResultMsg:
		return m.handleDeleteResult(msg)

	case transcriptionMsg:
		return m.handleTranscription(msg)

	case conversationResolvedMsg:
		// A fresh conversation got its server id mid-stream
		m.sidebar.SetActive(msg.id)
		return m, m.refreshHistoryCmd()

	case streamFailedMsg:
		m.status.SetStreaming(false)
		if errors.Is(msg.err, assembler.ErrSendInFlight) {
			m.status.SetStatus("a reply is already in progress", true)
			return m, nil
		}
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(chat.StreamErrorMsg{Err: msg.err})
		return m, cmd

	case chat.StreamCompleteMsg:
		m.status.SetStreaming(false)
		cmds := []tea.Cmd{m.refreshHistoryCmd()}
		if m.speakNext {
			m.speakNext = false
			cmds = append(cmds, m.speakCmd(msg.Final))
		}
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case chat.StreamErrorMsg:
		m.status.SetStreaming(false)
		m.speakNext = false
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd

	case spokenMsg:
		if msg.err != nil && !errors.Is(msg.err, audio.ErrDisabled) {
			m.status.SetStatus("speech: "+msg.err.Error(), true)
		}
		return m, nil

	case logoutMsg:
		return m.handleLogout(msg)

	case accountDeletedMsg:
		if msg.err != nil {
			m.status.SetStatus("delete account: "+msg.err.Error(), true)
			return m, nil
		}
		// The identity is gone; fall back to a fresh login screen
		return m.handleLogout(logoutMsg{})

	case configReloadedMsg:
		// Theme changes apply immediately; server and audio settings
		// need a restart since the client and recorder are already built
		m.cfg = msg.cfg
		styles.ApplyBackground(msg.cfg.UI.Theme)
		m.status.SetStatus("configuration reloaded", false)
		return m, nil
	}

	return m.routeToActive(msg)
}

// View implements tea.Model.
func (m appModel) View() string {
	if m.state == stateLogin {
		return m.login.View()
	}

	if m.promptingAccount {
		box := m.theme.InputBox.Padding(1, 2).Render(
			m.theme.Title.Render("delete account") + "\n\n" +
				"confirm your password:\n" +
				m.accountInput.View() + "\n\n" +
				m.theme.Help.Render("enter confirm  esc cancel"))
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar.View(), m.chat.View())
	return body + "\n" + m.status.View()
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *appModel) applySize(width, height int) {
	m.width = width
	m.height = height

	m.theme.SetSize(width, height)
	m.login.SetSize(width, height)
	m.status.SetWidth(width)

	// One row for the status bar
	m.sidebar.SetSize(sidebarWidth, height-1)
	m.chat.SetSize(width-sidebarWidth, height-1)
}

// =============================================================================
// KEY ROUTING
// =============================================================================

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.state == stateLogin {
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		return m, cmd
	}

	if m.promptingAccount {
		return m.handleAccountPromptKey(msg)
	}

	// A pending delete swallows the next key: 'y' confirms, anything
	// else cancels.
	if m.pendingDelete != "" {
		id := m.pendingDelete
		m.pendingDelete = ""
		if msg.String() == "y" {
			m.status.SetStatus("deleting...", false)
			return m, m.deleteCmd(id)
		}
		m.status.ClearStatus()
		return m, nil
	}

	switch msg.String() {
	case "tab":
		if m.sidebar.Count() > 0 {
			m.focusSidebar = !m.focusSidebar
		}
		return m, nil

	case "ctrl+n":
		m.history.NewConversation()
		m.sidebar.SetActive("")
		m.focusSidebar = false
		m.status.ClearStatus()
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(chat.ClearTranscriptMsg{})
		return m, cmd

	case "ctrl+r":
		return m.toggleRecording()

	case "ctrl+d":
		return m.requestDelete()

	case "ctrl+o":
		m.status.SetStatus("logging out...", false)
		return m, m.logoutCmd()

	case "ctrl+x":
		ti := textinput.New()
		ti.Prompt = "> "
		ti.Placeholder = "password"
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '*'
		ti.Focus()
		m.accountInput = ti
		m.promptingAccount = true
		return m, textinput.Blink

	case " ":
		// Interrupts speech playback; otherwise space types as usual
		if m.speaker.Speaking() {
			m.speaker.Stop()
			m.status.SetStatus("speech stopped", false)
			return m, nil
		}
	}

	if m.focusSidebar {
		switch msg.String() {
		case "up", "k":
			m.sidebar.CursorUp()
			return m, nil
		case "down", "j":
			m.sidebar.CursorDown()
			return m, nil
		case "enter":
			if entry, ok := m.sidebar.Selected(); ok {
				m.status.SetStatus("opening "+entry.Title, false)
				return m, m.selectCmd(entry.ID)
			}
			return m, nil
		case "esc":
			m.focusSidebar = false
			return m, nil
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)
	return m, cmd
}

// routeToActive forwards unrecognized messages to whichever pane is showing.
func (m appModel) routeToActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.state == stateLogin {
		m.login, cmd = m.login.Update(msg)
		return m, cmd
	}
	if req, ok := msg.(chat.SendRequestMsg); ok {
		return m.startStream(req.Text, false)
	}
	m.chat, cmd = m.chat.Update(msg)
	return m, cmd
}

// =============================================================================
// AUTH
// =============================================================================

func (m appModel) authenticateCmd(user, password string, signup bool) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx := context.Background()
		var token string
		var err error
		if signup {
			token, err = client.Register(ctx, user, password)
		} else {
			token, err = client.Authenticate(ctx, user, password)
		}
		return authResultMsg{user: user, token: token, signup: signup, err: err}
	}
}

func (m appModel) handleAuthResult(msg authResultMsg) (tea.Model, tea.Cmd) {
	m.login.SetBusy(false)
	if msg.err != nil {
		m.login.SetError(msg.err.Error())
		log.Warn().Str("user", msg.user).Bool("signup", msg.signup).Msg("authentication failed")
		return m, nil
	}

	m.session.Login(msg.user, msg.token)
	m.state = stateChat
	m.status.SetUser(msg.user)
	if msg.signup {
		m.status.SetStatus("account created", false)
	}
	log.Info().Str("user", msg.user).Msg("logged in")
	return m, m.refreshHistoryCmd()
}

func (m appModel) handleAccountPromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.promptingAccount = false
		m.status.ClearStatus()
		return m, nil

	case "enter":
		password := m.accountInput.Value()
		if password == "" {
			return m, nil
		}
		m.promptingAccount = false
		m.status.SetStatus("deleting account...", false)
		return m, m.deleteAccountCmd(password)
	}

	var cmd tea.Cmd
	m.accountInput, cmd = m.accountInput.Update(msg)
	return m, cmd
}

func (m appModel) deleteAccountCmd(password string) tea.Cmd {
	client := m.client
	sess := m.session
	return func() tea.Msg {
		user, token, err := sess.Credentials()
		if err != nil {
			return accountDeletedMsg{err: err}
		}
		return accountDeletedMsg{err: client.DeleteAccount(context.Background(), user, token, password)}
	}
}

func (m appModel) logoutCmd() tea.Cmd {
	client := m.client
	sess := m.session
	return func() tea.Msg {
		user, token, err := sess.Credentials()
		if err != nil {
			return logoutMsg{err: err}
		}
		return logoutMsg{err: client.Logout(context.Background(), user, token)}
	}
}

func (m appModel) handleLogout(msg logoutMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		// The session stays as it was; only a confirmed logout clears it
		m.status.SetStatus("logout: "+msg.err.Error(), true)
		log.Warn().Err(msg.err).Msg("logout request failed")
		return m, nil
	}
	m.session.Reset()
	m.speaker.Stop()
	m.speakNext = false
	m.pendingDelete = ""
	m.promptingAccount = false
	m.focusSidebar = false

	// Nothing from the previous identity survives
	m.chat = chat.New(m.theme, m.cfg.UI)
	m.sidebar = components.NewSidebar(m.theme)
	m.status = components.NewStatusBar(m.theme)
	m.login.Reset()
	m.state = stateLogin

	m.applySize(m.width, m.height)
	return m, m.login.Init()
}

// =============================================================================
// STREAMING
// =============================================================================

// startStream opens the reply stream for text. voice marks a transcribed
// message, whose finished reply is spoken back.
func (m appModel) startStream(text string, voice bool) (tea.Model, tea.Cmd) {
	m.status.SetStreaming(true)
	m.status.ClearStatus()
	if voice {
		m.speakNext = true
	}

	// The pane shows the user line and spinner immediately; fragments
	// arrive asynchronously via program.Send.
	var paneCmd tea.Cmd
	m.chat, paneCmd = m.chat.Update(chat.StreamStartMsg{UserText: text})

	sender := m.sender
	openCmd := func() tea.Msg {
		stats := model.NewStatistics()
		fragments := 0
		hooks := assembler.Hooks{
			OnRender: func(accumulated string) {
				stats.RecordFirstFragment()
				fragments++
				send(chat.StreamFragmentMsg{Accumulated: accumulated})
			},
			OnConversationResolved: func(id string) {
				send(conversationResolvedMsg{id: id})
			},
			OnComplete: func(final string) {
				stats.Finalize(fragments)
				send(chat.StreamCompleteMsg{Final: final, Stats: stats})
			},
			OnError: func(err error) {
				send(chat.StreamErrorMsg{Err: err})
			},
		}
		if _, err := sender.Send(context.Background(), text, hooks); err != nil {
			return streamFailedMsg{err: err}
		}
		return nil
	}

	return m, tea.Batch(paneCmd, openCmd)
}

// =============================================================================
// HISTORY
// =============================================================================

func (m appModel) refreshHistoryCmd() tea.Cmd {
	hist := m.history
	return func() tea.Msg {
		entries, err := hist.Refresh(context.Background())
		return historyMsg{entries: entries, err: err}
	}
}

func (m appModel) selectCmd(id string) tea.Cmd {
	hist := m.history
	return func() tea.Msg {
		transcript, err := hist.Select(context.Background(), id)
		return conversationLoadedMsg{id: id, transcript: transcript, err: err}
	}
}

func (m appModel) requestDelete() (tea.Model, tea.Cmd) {
	entry, ok := m.sidebar.Selected()
	if !ok {
		m.status.SetStatus("no conversation selected", true)
		return m, nil
	}
	m.pendingDelete = entry.ID
	m.status.SetStatus(fmt.Sprintf("delete %q? y/n", entry.Title), false)
	return m, nil
}

func (m appModel) deleteCmd(id string) tea.Cmd {
	hist := m.history
	return func() tea.Msg {
		clearedActive, err := hist.Delete(context.Background(), id)
		return deleteResultMsg{id: id, clearedActive: clearedActive, err: err}
	}
}

func (m appModel) handleDeleteResult(msg deleteResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.status.SetStatus("delete: "+msg.err.Error(), true)
		return m, nil
	}
	m.status.SetStatus("conversation deleted", false)

	cmds := []tea.Cmd{m.refreshHistoryCmd()}
	if msg.clearedActive {
		// The open pane belonged to the deleted conversation
		m.sidebar.SetActive("")
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(chat.ClearTranscriptMsg{})
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// =============================================================================
// VOICE
// =============================================================================

func (m appModel) toggleRecording() (tea.Model, tea.Cmd) {
	if m.chat.Streaming() {
		m.status.SetStatus("wait for the reply to finish", true)
		return m, nil
	}

	if !m.recorder.Recording() {
		if err := m.recorder.Start(); err != nil {
			if errors.Is(err, audio.ErrDisabled) {
				m.status.SetStatus("audio is disabled", true)
			} else {
				m.status.SetStatus("record: "+err.Error(), true)
			}
			return m, nil
		}
		m.status.SetRecording(true)
		m.status.SetStatus("recording... ctrl+r to stop", false)
		return m, nil
	}

	m.status.SetRecording(false)
	path, err := m.recorder.Stop()
	if err != nil {
		m.status.SetStatus("record: "+err.Error(), true)
		return m, nil
	}
	m.status.SetStatus("transcribing...", false)

	client := m.client
	sess := m.session
	return m, func() tea.Msg {
		text, err := audio.Transcribe(context.Background(), client, sess, path)
		return transcriptionMsg{text: text, err: err}
	}
}

func (m appModel) handleTranscription(msg transcriptionMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.status.SetStatus("transcription: "+msg.err.Error(), true)
		return m, nil
	}
	if msg.text == "" {
		m.status.SetStatus("nothing was transcribed", true)
		return m, nil
	}
	if m.chat.Streaming() {
		// A typed message won the race while "transcribing..." was up.
		// The transcription lands in the input instead of being dropped.
		m.chat.SetInput(msg.text)
		m.status.SetStatus("reply in progress, transcription kept in the input", false)
		return m, nil
	}
	return m.startStream(msg.text, true)
}

func (m appModel) speakCmd(text string) tea.Cmd {
	speaker := m.speaker
	return func() tea.Msg {
		return spokenMsg{err: speaker.Say(context.Background(), text)}
	}
}
