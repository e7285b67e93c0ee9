package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"quill/internal/domain"
	"quill/internal/usecase/shellrun"
)

// runShellCmd drives one shell command through the runner in a background
// goroutine. The runner blocks until the foreground run settles (exit, kill,
// abort, or background handoff); all painting happens via Bridge messages
// along the way. gen identifies the request so stale completions from
// cancelled runs are discarded.
func runShellCmd(ctx context.Context, runner *shellrun.Runner, raw string, gen uint64) tea.Cmd {
	return func() tea.Msg {
		handled := runner.HandleShellCommand(ctx, raw)
		return ShellDoneMsg{Gen: gen, Handled: handled}
	}
}

// askAgentCmd runs the assistant handler in a background goroutine with a
// cancellable context.
func askAgentCmd(ctx context.Context, handler domain.MessageHandler, msg domain.InboundMessage, gen uint64) tea.Cmd {
	return func() tea.Msg {
		reply, err := handler(ctx, msg)
		return HandlerDoneMsg{Gen: gen, Reply: reply, Err: err}
	}
}
