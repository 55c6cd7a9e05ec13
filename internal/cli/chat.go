// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive line-mode chat for voxchat.
//
// Handles "voxchat chat": a REPL for terminals where the full TUI is
// unwanted (ssh sessions, screen readers, scripts). Replies stream to
// stdout as plain text fragments; a markdown pass is applied at the end
// when stdout is a TTY.
//
// Interactive commands:
//   /history            List conversations
//   /open N             Open conversation number N from the last /history
//   /new                Start a new conversation
//   /delete N           Delete conversation number N
//   /logout             Log out and exit
//   /delete-account     Delete the account (asks for the password again)
//   /quit, /q           Exit
//   Ctrl+D              Exit
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/jeranaias/voxchat-tui/internal/api"
	"github.com/jeranaias/voxchat-tui/internal/assembler"
	"github.com/jeranaias/voxchat-tui/internal/config"
	"github.com/jeranaias/voxchat-tui/internal/history"
	"github.com/jeranaias/voxchat-tui/internal/markdown"
	"github.com/jeranaias/voxchat-tui/internal/model"
	"github.com/jeranaias/voxchat-tui/internal/session"
	"github.com/jeranaias/voxchat-tui/internal/ui/styles"
)

var (
	promptStyle  = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
	welcomeStyle = lipgloss.NewStyle().Foreground(styles.Purple).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(styles.TextSecondary)
)

// chatREPL bundles the line editor with its persistent history file.
type chatREPL struct {
	line        *liner.State
	historyFile string
}

func newChatREPL() *chatREPL {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	r := &chatREPL{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *chatREPL) close() {
	if f, err := os.Create(r.historyFile); err == nil {
		r.line.WriteHistory(f)
		f.Close()
	}
	r.line.Close()
}

// HandleChat runs the line-mode chat session.
func HandleChat(args Args) {
	cfg := config.Global()
	if args.Server != "" {
		cfg.Server.BaseURL = args.Server
	}

	client := api.NewClient(cfg.Server.BaseURL).
		WithStreamIdleTimeout(cfg.StreamIdleTimeout())
	sess := session.NewStore()

	repl := newChatREPL()
	defer repl.close()

	fmt.Println(welcomeStyle.Render("voxchat " + Version))

	if err := loginPrompt(repl, client, sess, args.User); err != nil {
		fmt.Fprintln(os.Stderr, styles.RenderError(err.Error()))
		os.Exit(1)
	}

	sender := assembler.NewSender(client, sess)
	lists := history.NewController(client, sess)
	renderer := markdown.NewRenderer(cfg.UI.WordWrap)
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))

	var listed []model.ConversationSummary
	for {
		input, err := repl.line.Prompt(promptStyle.Render("you> "))
		if err != nil { // Ctrl+D or Ctrl+C at the prompt
			fmt.Println()
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		repl.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := handleCommand(input, client, sess, lists, renderer, isTTY, &listed); quit {
				return
			}
			continue
		}

		sendAndPrint(sender, renderer, input, isTTY)
	}
}

// loginPrompt authenticates interactively. The password never echoes.
func loginPrompt(repl *chatREPL, client *api.Client, sess *session.Store, presetUser string) error {
	user := presetUser
	if user == "" {
		var err error
		user, err = repl.line.Prompt("username: ")
		if err != nil {
			return err
		}
		user = strings.TrimSpace(user)
	}

	fmt.Print("password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	token, err := client.Authenticate(context.Background(), user, string(pw))
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	sess.Login(user, token)
	fmt.Println(infoStyle.Render("logged in as " + user))
	return nil
}

// handleCommand processes a slash command. Reports whether to quit.
func handleCommand(input string, client *api.Client, sess *session.Store, lists *history.Controller, renderer *markdown.Renderer, isTTY bool, listed *[]model.ConversationSummary) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/q":
		return true

	case "/help", "/h":
		fmt.Println(infoStyle.Render("/history  /open N  /new  /delete N  /logout  /delete-account  /quit"))

	case "/history":
		entries, err := lists.Refresh(context.Background())
		if err != nil {
			fmt.Println(styles.RenderError(err.Error()))
			return false
		}
		*listed = entries
		for i, e := range entries {
			fmt.Printf("%3d  %s  %s\n", i+1, e.UpdatedAt, e.Title)
		}
		if len(entries) == 0 {
			fmt.Println(infoStyle.Render("(no conversations)"))
		}

	case "/open":
		entry, ok := pickEntry(fields, *listed)
		if !ok {
			return false
		}
		transcript, err := lists.Select(context.Background(), entry.ID)
		if err != nil {
			fmt.Println(styles.RenderError(err.Error()))
			return false
		}
		printTranscript(os.Stdout, transcript, renderer, isTTY)

	case "/new":
		lists.NewConversation()
		fmt.Println(infoStyle.Render("started a new conversation"))

	case "/delete":
		entry, ok := pickEntry(fields, *listed)
		if !ok {
			return false
		}
		clearedActive, err := lists.Delete(context.Background(), entry.ID)
		if err != nil {
			fmt.Println(styles.RenderError(err.Error()))
			return false
		}
		if clearedActive {
			fmt.Println(infoStyle.Render("deleted the open conversation, starting fresh"))
		} else {
			fmt.Println(infoStyle.Render("deleted"))
		}

	case "/logout":
		user, token, err := sess.Credentials()
		if err != nil {
			fmt.Println(styles.RenderError(err.Error()))
			return false
		}
		// Only a confirmed logout clears the session
		if err := client.Logout(context.Background(), user, token); err != nil {
			fmt.Println(styles.RenderError("logout failed: " + err.Error()))
			return false
		}
		sess.Reset()
		fmt.Println(infoStyle.Render("logged out"))
		return true

	case "/delete-account":
		return deleteAccount(client, sess)

	default:
		fmt.Println(styles.RenderWarning("unknown command, try /help"))
	}
	return false
}

// deleteAccount re-asks for the password before removing the account.
// Reports whether to quit (true after a successful deletion).
func deleteAccount(client *api.Client, sess *session.Store) bool {
	user, token, err := sess.Credentials()
	if err != nil {
		fmt.Println(styles.RenderError(err.Error()))
		return false
	}

	fmt.Print("confirm password to delete account " + user + ": ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil || len(pw) == 0 {
		fmt.Println(infoStyle.Render("cancelled"))
		return false
	}

	if err := client.DeleteAccount(context.Background(), user, token, string(pw)); err != nil {
		fmt.Println(styles.RenderError("account deletion failed: " + err.Error()))
		return false
	}
	sess.Reset()
	fmt.Println(infoStyle.Render("account deleted"))
	return true
}

// printTranscript writes a loaded conversation, assistant replies going
// through the same markdown pipeline as live streaming: a full glamour pass
// on TTYs, markup escaping otherwise.
func printTranscript(w io.Writer, transcript *model.Transcript, renderer *markdown.Renderer, isTTY bool) {
	for _, msg := range transcript.Messages {
		content := msg.GetDisplayContent()
		if msg.Role == model.RoleAssistant {
			if isTTY {
				fmt.Fprintf(w, "%s:\n%s", msg.Role.DisplayName(), renderer.Render(content))
				continue
			}
			content = markdown.Sanitize(content)
		}
		fmt.Fprintf(w, "%s: %s\n", msg.Role.DisplayName(), content)
	}
}

// pickEntry resolves "/open N" style indices against the last /history output.
func pickEntry(fields []string, listed []model.ConversationSummary) (model.ConversationSummary, bool) {
	if len(fields) < 2 {
		fmt.Println(styles.RenderWarning("usage: " + fields[0] + " N (run /history first)"))
		return model.ConversationSummary{}, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 || n > len(listed) {
		fmt.Println(styles.RenderWarning("no such conversation number"))
		return model.ConversationSummary{}, false
	}
	return listed[n-1], true
}

// sendAndPrint streams one reply to stdout.
func sendAndPrint(sender *assembler.Sender, renderer *markdown.Renderer, text string, isTTY bool) {
	done := make(chan struct{})
	printed := 0

	hooks := assembler.Hooks{
		OnRender: func(accumulated string) {
			// Stream the raw tail; the markdown pass happens once at the end
			fmt.Print(accumulated[printed:])
			printed = len(accumulated)
		},
		OnComplete: func(final string) {
			fmt.Println()
			if isTTY {
				fmt.Print(renderer.Render(final))
			}
			close(done)
		},
		OnError: func(err error) {
			fmt.Println()
			fmt.Println(styles.RenderError("reply interrupted: " + err.Error()))
			close(done)
		},
	}

	if _, err := sender.Send(context.Background(), text, hooks); err != nil {
		fmt.Println(styles.RenderError(err.Error()))
		return
	}
	<-done
}
