package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"quill/internal/adapter/tui/theme"
	"quill/internal/domain"
)

// shellTailLines is how many trailing output lines each panel row shows.
const shellTailLines = 4

// ShellPanelModel renders the registry of backgrounded shells: one row per
// shell with its status, pid, command, and a tail of captured output. The
// panel holds a cursor so the focused shell can be killed or dismissed.
type ShellPanelModel struct {
	Shells   []domain.BackgroundShell
	Selected int
	Focused  bool
	width    int
	height   int
}

// NewShellPanel creates an empty panel.
func NewShellPanel() ShellPanelModel {
	return ShellPanelModel{}
}

// SetSize updates the panel dimensions.
func (m *ShellPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetShells replaces the displayed shells, clamping the cursor.
func (m *ShellPanelModel) SetShells(shells []domain.BackgroundShell) {
	m.Shells = shells
	if m.Selected >= len(shells) {
		m.Selected = len(shells) - 1
	}
	if m.Selected < 0 {
		m.Selected = 0
	}
}

// SelectNext moves the cursor down.
func (m *ShellPanelModel) SelectNext() {
	if len(m.Shells) == 0 {
		return
	}
	m.Selected = (m.Selected + 1) % len(m.Shells)
}

// SelectPrev moves the cursor up.
func (m *ShellPanelModel) SelectPrev() {
	if len(m.Shells) == 0 {
		return
	}
	m.Selected--
	if m.Selected < 0 {
		m.Selected = len(m.Shells) - 1
	}
}

// SelectedPID returns the pid under the cursor, or false when empty.
func (m ShellPanelModel) SelectedPID() (int, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Shells) {
		return 0, false
	}
	return m.Shells[m.Selected].PID, true
}

// View renders the panel inside a rounded border.
func (m ShellPanelModel) View() string {
	border := theme.PanelBorder
	if m.Focused {
		border = theme.PanelBorderFocused
	}

	innerW := m.width - 4
	if innerW < 20 {
		innerW = 20
	}

	title := theme.PanelTitle.Render("Background shells")
	if m.Focused {
		title += theme.TextMuted.Render("  j/k: select  x: kill  d: dismiss")
	}

	if len(m.Shells) == 0 {
		body := theme.TextMuted.Render("  (none)")
		return border.Width(m.width - 2).Render(title + "\n" + body)
	}

	var rows []string
	for i, sh := range m.Shells {
		rows = append(rows, m.renderShell(i, sh, innerW))
	}

	return border.Width(m.width - 2).Render(title + "\n" + strings.Join(rows, "\n"))
}

func (m ShellPanelModel) renderShell(idx int, sh domain.BackgroundShell, width int) string {
	icon := theme.TextSuccess.Render(theme.SymbolSuccess)
	label := "exited"
	if sh.Status == domain.ShellStatusRunning {
		icon = theme.TextInfo.Render(theme.SymbolRunning)
		label = "running"
	} else if sh.ExitCode != nil && *sh.ExitCode != 0 {
		icon = theme.TextError.Render(theme.SymbolError)
		label = fmt.Sprintf("exit %d", *sh.ExitCode)
	}

	cmd := sh.Command
	maxCmd := width - len(label) - 14
	if maxCmd > 10 && len(cmd) > maxCmd {
		cmd = cmd[:maxCmd-1] + theme.SymbolEllipsis
	}

	header := fmt.Sprintf("%s %s %s %s",
		icon,
		theme.Bold.Render(cmd),
		theme.TextMuted.Render(fmt.Sprintf("[%d]", sh.PID)),
		theme.TextMuted.Render(label))
	if idx == m.Selected && m.Focused {
		header = theme.PanelSelected.Width(width).Render(header)
	}

	tail := outputTail(sh.Output, shellTailLines, width-4)
	if tail == "" {
		return header
	}
	return header + "\n" + theme.ShellOutput.Render(tail)
}

// outputTail returns the last n non-empty lines of output, each indented
// and clipped to width.
func outputTail(output string, n, width int) string {
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return ""
	}
	lines := strings.Split(output, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, ln := range lines {
		if width > 1 && lipgloss.Width(ln) > width {
			ln = truncateANSI(ln, width-1) + theme.SymbolEllipsis
		}
		lines[i] = "    " + ln
	}
	return strings.Join(lines, "\n")
}

// truncateANSI clips a line to width cells. Output lines are raw process
// bytes, so plain rune slicing is close enough for display.
func truncateANSI(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width])
}
