// Package chat implements the Bubble Tea console for quill: a command
// composer, the scrollback history, and the background shell panel.
package chat

import (
	"time"

	"quill/internal/domain"
	"quill/internal/usecase/shellstore"
)

// ShellPendingMsg carries the mutable display record for the in-flight
// foreground invocation. A nil record clears the display.
type ShellPendingMsg struct {
	Record *domain.ToolCallRecord
}

// UserCommandMsg records a command the user issued, before execution.
type UserCommandMsg struct {
	Command string
	At      time.Time
}

// ToolCallMsg records one permanent invocation outcome.
type ToolCallMsg struct {
	Record domain.ToolCallRecord
}

// SystemNoticeMsg records an ephemeral notice line.
type SystemNoticeMsg struct {
	Text string
}

// ShellStateMsg carries a background shell store snapshot after every
// transition.
type ShellStateMsg struct {
	State shellstore.State
}

// FocusInputMsg returns focus to the composer after a foreground run.
type FocusInputMsg struct{}

// ShellDoneMsg signals that the runner goroutine finished handling one
// command. Gen identifies the request so stale completions are discarded.
type ShellDoneMsg struct {
	Gen     uint64
	Handled bool
}

// HandlerDoneMsg signals that the assistant handler finished.
// Gen identifies the request so stale completions are discarded.
type HandlerDoneMsg struct {
	Gen   uint64
	Reply domain.OutboundMessage
	Err   error
}

// QuitMsg signals the program to exit.
type QuitMsg struct{}
