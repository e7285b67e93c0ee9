package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"quill/internal/adapter/tui/components"
	"quill/internal/adapter/tui/theme"
	"quill/internal/adapter/tui/uxerror"
	"quill/internal/domain"
	"quill/internal/usecase/shellrun"
	"quill/internal/usecase/shellstore"
)

// DefaultSessionID is the session identifier used by the console surface.
const DefaultSessionID = "console-default"

// HistoryQuery reads back persisted invocations for the /history command.
type HistoryQuery interface {
	Recent(limit int) ([]domain.ShellInvocation, error)
}

// ModelDeps are dependencies injected into the console model.
type ModelDeps struct {
	Runner   *shellrun.Runner
	Handler  domain.MessageHandler
	History  HistoryQuery // may be nil
	Logger   *slog.Logger
	WorkDir  string
	AppTitle string // shown in the status bar
}

// Model is the root Bubble Tea model for the quill console.
type Model struct {
	deps ModelDeps

	// Sub-models
	chatView  components.ChatViewModel
	input     components.InputAreaModel
	statusBar components.StatusBarModel
	panel     components.ShellPanelModel
	spinner   spinner.Model

	// State
	shells       shellstore.State
	running      bool // foreground shell in flight
	waiting      bool // assistant handler in flight
	pendingShown bool // the tail history entry is the in-flight invocation
	panelFocused bool
	width        int
	height       int
	quitting     bool

	// Request lifecycle: gen is incremented on every new request.
	// Stale ShellDoneMsg / HandlerDoneMsg with an older gen are discarded.
	gen      uint64
	cancelFn context.CancelFunc
}

// NewModel creates the root console model.
func NewModel(deps ModelDeps) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	sb := components.NewStatusBar()
	sb.AppName = deps.AppTitle
	sb.WorkDir = deps.WorkDir
	sb.Hints = defaultHints()

	chatView := components.NewChatView()
	chatView.SetMaxMessages(1000)

	inputArea := components.NewInputArea()
	inputArea.Autocomplete = components.NewAutocomplete([]components.CommandDef{
		{Name: "/help", Description: "Show available commands"},
		{Name: "/ask", Description: "Ask the assistant"},
		{Name: "/shells", Description: "Toggle the background shell panel"},
		{Name: "/bg", Description: "Move the running command to the background"},
		{Name: "/kill", Description: "Kill the running command"},
		{Name: "/history", Description: "Show recent command history"},
		{Name: "/cancel", Description: "Cancel the active request"},
		{Name: "/clear", Description: "Clear the scrollback"},
		{Name: "/quit", Description: "Exit quill"},
	})

	return Model{
		deps:      deps,
		chatView:  chatView,
		input:     inputArea,
		statusBar: sb,
		panel:     components.NewShellPanel(),
		spinner:   s,
	}
}

// Init initializes sub-models.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case components.InputSubmitMsg:
		return m.handleSubmit(msg.Value)

	case UserCommandMsg:
		m.chatView.AddMessage(components.ChatMessage{
			Role:      components.RoleUser,
			Content:   msg.Command,
			Timestamp: msg.At,
		})
		return m, nil

	case ShellPendingMsg:
		return m.handlePending(msg.Record)

	case ToolCallMsg:
		view := components.ShellCallView{
			Command: msg.Record.CommandText,
			Status:  msg.Record.Status,
			Text:    msg.Record.ResultText,
		}
		if m.pendingShown {
			m.chatView.UpdateLastShell(view)
			m.pendingShown = false
		} else {
			// Deferred outcome of a backgrounded shell.
			m.chatView.AddMessage(components.ChatMessage{
				Role:      components.RoleShell,
				Timestamp: msg.Record.Timestamp,
				Shell:     &view,
			})
		}
		return m, nil

	case SystemNoticeMsg:
		m.chatView.AddMessage(components.ChatMessage{
			Role:    components.RoleSystem,
			Content: msg.Text,
		})
		return m, nil

	case ShellStateMsg:
		m.shells = msg.State
		m.panel.SetShells(msg.State.Shells)
		m.statusBar.ShellCount = runningCount(msg.State.Shells)
		if !msg.State.Visible {
			m.panelFocused = false
		}
		m.layout()
		return m, nil

	case FocusInputMsg:
		if !m.running && !m.waiting {
			m.input.SetEnabled(true)
		}
		return m, nil

	case ShellDoneMsg:
		if msg.Gen != m.gen {
			return m, nil
		}
		m.running = false
		m.cancelFn = nil
		m.pendingShown = false
		m.input.SetEnabled(true)
		m.statusBar.Extra = ""
		m.statusBar.Hints = defaultHints()
		if !msg.Handled {
			m.chatView.AddMessage(components.ChatMessage{
				Role:    components.RoleSystem,
				Content: "Nothing to run.",
			})
		}
		return m, nil

	case HandlerDoneMsg:
		if msg.Gen != m.gen {
			return m, nil
		}
		m.waiting = false
		m.cancelFn = nil
		m.input.SetEnabled(true)
		m.statusBar.Extra = ""
		if msg.Err != nil {
			if msg.Err != context.Canceled {
				friendly := uxerror.Humanize(msg.Err)
				m.chatView.AddMessage(components.ChatMessage{
					Role:    components.RoleError,
					Content: friendly.Render(),
				})
			}
			return m, nil
		}
		role := components.RoleAssistant
		if msg.Reply.IsError {
			role = components.RoleError
		}
		m.chatView.AddMessage(components.ChatMessage{
			Role:      role,
			Content:   msg.Reply.Content,
			Timestamp: time.Now(),
		})
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Update sub-models (filter mouse events from reaching the input).
	if !m.running && !m.waiting {
		if _, isMouse := msg.(tea.MouseMsg); !isMouse {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.chatView, cmd = m.chatView.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handlePending paints the mutable display record for the in-flight run.
func (m Model) handlePending(rec *domain.ToolCallRecord) (tea.Model, tea.Cmd) {
	if rec == nil {
		// Cleared: the final outcome (or a background notice) follows as
		// its own message. Leave the last painted state on screen.
		m.pendingShown = false
		return m, nil
	}
	view := components.ShellCallView{
		Command: rec.CommandText,
		Status:  rec.Status,
		Text:    rec.ResultText,
	}
	if m.pendingShown {
		m.chatView.UpdateLastShell(view)
	} else {
		m.chatView.AddMessage(components.ChatMessage{
			Role:      components.RoleShell,
			Timestamp: rec.Timestamp,
			Shell:     &view,
		})
		m.pendingShown = true
	}
	return m, nil
}

// View renders the entire console.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 {
		return "  Initializing..."
	}

	parts := []string{m.chatView.View()}

	if m.shells.Visible {
		m.panel.Focused = m.panelFocused
		parts = append(parts, m.panel.View())
	}

	inputView := m.input.View()
	if m.running || m.waiting {
		inputView = lipgloss.NewStyle().Faint(true).Render("> "+m.statusBar.Extra) +
			"\n" + m.spinner.View() + " " + theme.TextMuted.Render("Ctrl+C to cancel")
	}

	parts = append(parts, components.Divider(m.width), inputView, m.statusBar.View())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// layout recalculates sizes for all sub-models.
func (m *Model) layout() {
	inputH := 3
	statusH := 1
	dividerH := 1

	panelH := 0
	if m.shells.Visible {
		panelH = panelHeight(len(m.shells.Shells), m.height)
	}

	contentH := m.height - inputH - statusH - dividerH - panelH
	if contentH < 5 {
		contentH = 5
	}

	m.statusBar.SetWidth(m.width)
	m.chatView.SetSize(m.width, contentH)
	m.input.SetWidth(m.width)
	m.panel.SetSize(m.width, panelH)
}

// panelHeight sizes the shell panel: enough for the shells it shows, capped
// at a third of the terminal.
func panelHeight(shells, termH int) int {
	h := 3 + shells*(1+4) // border+title, then header+tail per shell
	max := termH / 3
	if max < 6 {
		max = 6
	}
	if h > max {
		h = max
	}
	return h
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.running {
			// Abort the foreground command; the run settles through the
			// driver and a ShellDoneMsg follows.
			if m.cancelFn != nil {
				m.cancelFn()
			}
			m.statusBar.Extra = "Cancelling" + theme.SymbolEllipsis
			return m, nil
		}
		if m.waiting {
			m.cancelRequest("Request cancelled.")
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case tea.KeyCtrlB:
		if m.running {
			m.deps.Runner.BackgroundActive()
		}
		return m, nil

	case tea.KeyCtrlX:
		if m.running {
			m.deps.Runner.KillActive()
		}
		return m, nil

	case tea.KeyCtrlS:
		m.deps.Runner.ToggleVisibility()
		return m, nil

	case tea.KeyCtrlL:
		return m.handleSlashCommand("/clear", nil)

	case tea.KeyTab:
		if m.shells.Visible {
			m.panelFocused = !m.panelFocused
			m.input.SetEnabled(!m.panelFocused && !m.running && !m.waiting)
			if m.panelFocused {
				m.statusBar.Hints = panelHints()
			} else {
				m.statusBar.Hints = defaultHints()
			}
		}
		return m, nil

	case tea.KeyEsc:
		if m.panelFocused {
			m.panelFocused = false
			m.input.SetEnabled(!m.running && !m.waiting)
			m.statusBar.Hints = defaultHints()
		}
		return m, nil

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}

	// Panel focus: j/k select, x kills, d dismisses.
	if m.panelFocused {
		switch msg.String() {
		case "j", "down":
			m.panel.SelectNext()
		case "k", "up":
			m.panel.SelectPrev()
		case "x":
			if pid, ok := m.panel.SelectedPID(); ok {
				m.deps.Runner.KillShell(pid)
			}
		case "d":
			if pid, ok := m.panel.SelectedPID(); ok {
				m.deps.Runner.Dismiss(pid)
			}
		}
		return m, nil
	}

	// Forward to input area.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSubmit processes composer input: slash commands, assistant
// questions ("?" prefix), and everything else as a shell command.
func (m Model) handleSubmit(value string) (tea.Model, tea.Cmd) {
	if cmd, args, ok := components.ParseSlashCommand(value); ok {
		return m.handleSlashCommand(cmd, args)
	}

	if rest, ok := strings.CutPrefix(value, "?"); ok {
		return m.askAssistant(strings.TrimSpace(rest))
	}

	return m.runShell(value)
}

// runShell starts one foreground shell command.
func (m Model) runShell(raw string) (tea.Model, tea.Cmd) {
	if m.running || m.waiting {
		m.chatView.AddMessage(components.ChatMessage{
			Role:    components.RoleSystem,
			Content: "A request is already in flight.",
		})
		return m, nil
	}

	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel

	m.running = true
	m.input.SetEnabled(false)
	m.statusBar.Extra = "Running: " + firstLine(raw)
	m.statusBar.Hints = runningHints()

	return m, runShellCmd(ctx, m.deps.Runner, raw, m.gen)
}

// askAssistant routes a question to the message handler.
func (m Model) askAssistant(question string) (tea.Model, tea.Cmd) {
	if question == "" {
		m.chatView.AddMessage(components.ChatMessage{
			Role:    components.RoleSystem,
			Content: "Usage: ?<question> or /ask <question>",
		})
		return m, nil
	}
	if m.running || m.waiting {
		m.chatView.AddMessage(components.ChatMessage{
			Role:    components.RoleSystem,
			Content: "A request is already in flight.",
		})
		return m, nil
	}

	m.chatView.AddMessage(components.ChatMessage{
		Role:      components.RoleUser,
		Content:   question,
		Timestamp: time.Now(),
	})

	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel

	m.waiting = true
	m.input.SetEnabled(false)
	m.statusBar.Extra = theme.SymbolSpinner + " Thinking..."

	inbound := domain.InboundMessage{
		SessionID: DefaultSessionID,
		Content:   question,
	}
	return m, askAgentCmd(ctx, m.deps.Handler, inbound, m.gen)
}

// handleSlashCommand processes a slash command.
func (m Model) handleSlashCommand(cmd string, args []string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "/help":
		m.chatView.AddMessage(components.ChatMessage{
			Role: components.RoleSystem,
			Content: `Available commands:
  <command>     - Run a shell command
  ?<question>   - Ask the assistant
  /ask <text>   - Ask the assistant
  /shells       - Toggle the background shell panel
  /bg           - Move the running command to the background
  /kill         - Kill the running command
  /history [n]  - Show recent command history
  /cancel       - Cancel the active request
  /clear        - Clear the scrollback
  /quit         - Exit quill

Keybindings:
  Enter         - Run
  Alt+Enter     - New line
  Ctrl+B        - Background the running command
  Ctrl+X        - Kill the running command
  Ctrl+S        - Toggle shell panel
  Tab           - Focus shell panel (j/k select, x kill, d dismiss)
  Ctrl+L        - Clear scrollback
  Ctrl+C        - Cancel/Quit
  PgUp/PgDn     - Scroll history`,
		})
		return m, nil

	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit

	case "/clear":
		m.chatView.Clear()
		m.chatView.AddMessage(components.ChatMessage{
			Role:    components.RoleSystem,
			Content: theme.SymbolSuccess + " Scrollback cleared.",
		})
		return m, nil

	case "/ask":
		return m.askAssistant(strings.Join(args, " "))

	case "/shells":
		m.deps.Runner.ToggleVisibility()
		return m, nil

	case "/bg":
		if m.running {
			m.deps.Runner.BackgroundActive()
		} else {
			m.chatView.AddMessage(components.ChatMessage{
				Role:    components.RoleSystem,
				Content: "No command is running.",
			})
		}
		return m, nil

	case "/kill":
		if m.running {
			m.deps.Runner.KillActive()
		} else {
			m.chatView.AddMessage(components.ChatMessage{
				Role:    components.RoleSystem,
				Content: "No command is running.",
			})
		}
		return m, nil

	case "/history":
		return m.handleHistory(args)

	case "/cancel":
		if m.running {
			if m.cancelFn != nil {
				m.cancelFn()
			}
			m.statusBar.Extra = "Cancelling" + theme.SymbolEllipsis
		} else if m.waiting {
			m.cancelRequest("Request cancelled.")
		} else {
			m.chatView.AddMessage(components.ChatMessage{
				Role:    components.RoleSystem,
				Content: "No active request to cancel.",
			})
		}
		return m, nil

	default:
		m.chatView.AddMessage(components.ChatMessage{
			Role:    components.RoleSystem,
			Content: fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd),
		})
		return m, nil
	}
}

func (m Model) handleHistory(args []string) (tea.Model, tea.Cmd) {
	if m.deps.History == nil {
		m.chatView.AddMessage(components.ChatMessage{
			Role:    components.RoleSystem,
			Content: "Command history is disabled.",
		})
		return m, nil
	}

	limit := 10
	if len(args) > 0 {
		if _, err := fmt.Sscanf(args[0], "%d", &limit); err != nil || limit < 1 {
			limit = 10
		}
	}

	invs, err := m.deps.History.Recent(limit)
	if err != nil {
		m.chatView.AddMessage(components.ChatMessage{
			Role:    components.RoleError,
			Content: "Could not read history: " + err.Error(),
		})
		return m, nil
	}
	if len(invs) == 0 {
		m.chatView.AddMessage(components.ChatMessage{
			Role:    components.RoleSystem,
			Content: "History is empty.",
		})
		return m, nil
	}

	var sb strings.Builder
	sb.WriteString("Recent commands:\n")
	for _, inv := range invs {
		icon := theme.SymbolSuccess
		if inv.Status == domain.ToolCallError {
			icon = theme.SymbolError
		} else if inv.Status == domain.ToolCallCancelled {
			icon = theme.SymbolWarning
		}
		sb.WriteString(fmt.Sprintf("  %s %s\n", icon, firstLine(inv.Command)))
	}
	m.chatView.AddMessage(components.ChatMessage{
		Role:    components.RoleSystem,
		Content: strings.TrimRight(sb.String(), "\n"),
	})
	return m, nil
}

// cancelRequest cancels the in-flight assistant goroutine, bumps the
// generation counter so stale responses are discarded, and resets UI state.
func (m *Model) cancelRequest(reason string) {
	if m.cancelFn != nil {
		m.cancelFn()
		m.cancelFn = nil
	}
	m.gen++ // ensure stale HandlerDoneMsg are ignored
	m.waiting = false
	m.input.SetEnabled(true)
	m.statusBar.Extra = ""
	m.statusBar.Hints = defaultHints()
	m.chatView.AddMessage(components.ChatMessage{
		Role:    components.RoleSystem,
		Content: reason,
	})
}

func runningCount(shells []domain.BackgroundShell) int {
	n := 0
	for _, sh := range shells {
		if sh.Status == domain.ShellStatusRunning {
			n++
		}
	}
	return n
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + theme.SymbolEllipsis
	}
	return s
}

func defaultHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "Enter", Desc: "Run"},
		{Key: "Ctrl+S", Desc: "Shells"},
		{Key: "?", Desc: "Ask"},
		{Key: "/help", Desc: "Help"},
		{Key: "Ctrl+C", Desc: "Quit"},
	}
}

func runningHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "Ctrl+B", Desc: "Background"},
		{Key: "Ctrl+X", Desc: "Kill"},
		{Key: "Ctrl+C", Desc: "Cancel"},
	}
}

func panelHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "j/k", Desc: "Select"},
		{Key: "x", Desc: "Kill"},
		{Key: "d", Desc: "Dismiss"},
		{Key: "Tab", Desc: "Back"},
	}
}
