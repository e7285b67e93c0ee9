package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"quill/internal/adapter/tui/theme"
)

// KeyHint represents a single keybinding hint shown in the status bar.
type KeyHint struct {
	Key  string // e.g. "Enter"
	Desc string // e.g. "Run"
}

// StatusBarModel renders a bottom status bar with keybinding hints, the
// working directory, and the count of live background shells.
type StatusBarModel struct {
	AppName    string    // application title, leftmost
	Hints      []KeyHint // show 4-5 most important hints
	WorkDir    string
	ShellCount int       // background shells still running
	Extra      string    // additional status text (e.g. "Running...")
	width      int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// View renders the status bar as a single line.
func (m StatusBarModel) View() string {
	// Left side: app name, then keybinding hints.
	var hints []string
	for _, h := range m.Hints {
		key := theme.StatusKey.Render(h.Key)
		hints = append(hints, key+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")
	if m.AppName != "" {
		left = theme.StatusKey.Render(m.AppName) + "  " + left
	}

	// Right side: workdir + background shell count.
	var parts []string
	if m.WorkDir != "" {
		parts = append(parts, TruncatePath(m.WorkDir, 32))
	}
	if m.ShellCount > 0 {
		parts = append(parts, fmt.Sprintf("%s %d bg", theme.SymbolRunning, m.ShellCount))
	}
	right := theme.TextMuted.Render(strings.Join(parts, " "+theme.SymbolBullet+" "))

	if m.Extra != "" {
		if right != "" {
			right += "  "
		}
		right += theme.TextInfo.Render(m.Extra)
	}

	// Join left and right, padding the gap.
	leftW := lipgloss.Width(left)
	rightW := lipgloss.Width(right)
	gap := m.width - leftW - rightW
	if gap < 1 {
		gap = 1
	}

	bar := left + strings.Repeat(" ", gap) + right
	return theme.StatusBar.Width(m.width).Render(bar)
}

// TruncatePath smartly truncates a file path with ellipsis in the middle.
// e.g. "/home/user/very/deep/nested/path" -> "/home/.../nested/path"
func TruncatePath(path string, maxLen int) string {
	if len(path) <= maxLen || maxLen < 10 {
		return path
	}

	sep := "/"
	parts := strings.Split(path, sep)
	if len(parts) <= 3 {
		return path[:maxLen-1] + theme.SymbolEllipsis
	}

	head := parts[0]
	tail := strings.Join(parts[len(parts)-2:], sep)
	result := head + sep + theme.SymbolEllipsis + sep + tail

	if len(result) > maxLen {
		return path[:maxLen-1] + theme.SymbolEllipsis
	}
	return result
}
