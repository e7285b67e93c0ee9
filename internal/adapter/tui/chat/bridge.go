package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"quill/internal/domain"
	"quill/internal/usecase/shellrun"
	"quill/internal/usecase/shellstore"
)

// Bridge forwards runner and store callbacks into the Bubble Tea program as
// messages. Callbacks fire on driver goroutines; Program.Send is the only
// safe way to reach the model from there.
//
// The program is attached after construction because the model (which needs
// the runner) must exist before tea.NewProgram is called.
type Bridge struct {
	mu      sync.Mutex
	program *tea.Program
}

// NewBridge creates an unattached bridge. Messages sent before Attach are
// dropped.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach binds the bridge to a running program.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.program = p
	b.mu.Unlock()
}

// Wire registers the bridge as the runner's display listeners and the
// store's change listener.
func (b *Bridge) Wire(runner *shellrun.Runner, store *shellstore.Store) {
	runner.SetPendingListener(func(rec *domain.ToolCallRecord) {
		b.send(ShellPendingMsg{Record: rec})
	})
	runner.SetFocusListener(func() {
		b.send(FocusInputMsg{})
	})
	store.SetOnChange(func(st shellstore.State) {
		b.send(ShellStateMsg{State: st})
	})
}

// WireBus subscribes the bridge to shell dismissal events so dismissals that
// bypass the runner (Ctrl+D on the panel, shutdown cleanup) still leave a
// trace in the transcript. The returned func unsubscribes.
func (b *Bridge) WireBus(bus domain.EventBus) func() {
	return bus.Subscribe(domain.EventShellDismissed, func(ctx context.Context, e domain.Event) {
		if text := NoticeFromEvent(e); text != "" {
			b.send(SystemNoticeMsg{Text: text})
		}
	})
}

// NoticeFromEvent renders a shell lifecycle event as a transcript notice.
// Events without a usable payload produce "".
func NoticeFromEvent(e domain.Event) string {
	var p domain.ShellEventPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil || p.PID == 0 {
		return ""
	}
	cmd := p.Command
	if i := strings.IndexByte(cmd, '\n'); i >= 0 {
		cmd = cmd[:i]
	}
	switch e.Type {
	case domain.EventShellDismissed:
		if cmd == "" {
			return fmt.Sprintf("Dismissed background shell %d.", p.PID)
		}
		return fmt.Sprintf("Dismissed background shell %d (%s).", p.PID, cmd)
	default:
		return ""
	}
}

// AppendUserCommand implements shellrun.HistorySink.
func (b *Bridge) AppendUserCommand(command string, ts time.Time) {
	b.send(UserCommandMsg{Command: command, At: ts})
}

// AppendToolCall implements shellrun.HistorySink.
func (b *Bridge) AppendToolCall(rec domain.ToolCallRecord) {
	b.send(ToolCallMsg{Record: rec})
}

// AppendSystem implements shellrun.HistorySink.
func (b *Bridge) AppendSystem(text string) {
	b.send(SystemNoticeMsg{Text: text})
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	p := b.program
	b.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}
