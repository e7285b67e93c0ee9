package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"quill/internal/domain"
	"quill/internal/usecase/shellstore"
)

// Assistant answers session questions locally: it reads the conversation
// transcript and the background shell store instead of calling a model.
// It implements domain.MessageHandler via Handle.
type Assistant struct {
	transcript *Transcript
	store      *shellstore.Store
	logger     *slog.Logger
}

// NewAssistant creates the local assistant.
func NewAssistant(transcript *Transcript, store *shellstore.Store, logger *slog.Logger) *Assistant {
	return &Assistant{transcript: transcript, store: store, logger: logger}
}

// Handle answers one question. It never fails; unrecognized questions get
// the capability summary.
func (a *Assistant) Handle(ctx context.Context, msg domain.InboundMessage) (domain.OutboundMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutboundMessage{}, err
	}

	q := strings.ToLower(strings.TrimSpace(msg.Content))
	a.logger.Debug("assistant question", "session_id", msg.SessionID, "len", len(q))

	var content string
	switch {
	case containsAny(q, "shell", "background", "running"):
		content = a.describeShells()
	case containsAny(q, "last", "previous", "output", "ran"):
		content = a.describeLastRun()
	default:
		content = "I keep track of this session. Ask me about:\n" +
			"- **background shells** (what is still running)\n" +
			"- **the last command** (what it printed)\n\n" +
			"Anything you type without a `?` runs as a shell command."
	}

	return domain.OutboundMessage{
		SessionID: msg.SessionID,
		Content:   content,
	}, nil
}

func (a *Assistant) describeShells() string {
	shells := a.store.Snapshot().Shells
	if len(shells) == 0 {
		return "No background shells. Start one with a long-running command and press `Ctrl+B`."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d background shell(s):\n", len(shells)))
	for _, sh := range shells {
		state := "exited"
		if sh.Status == domain.ShellStatusRunning {
			state = "running"
		} else if sh.ExitCode != nil {
			state = fmt.Sprintf("exited with code %d", *sh.ExitCode)
		}
		sb.WriteString(fmt.Sprintf("- `%s` (pid %d, %s)\n", firstLine(sh.Command), sh.PID, state))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (a *Assistant) describeLastRun() string {
	msgs := a.transcript.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleUser {
			return "The last recorded run:\n\n```\n" + msgs[i].Content + "\n```"
		}
	}
	return "Nothing has been run in this session yet."
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
