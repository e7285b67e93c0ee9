// Package shellstore holds the authoritative state of all tracked background
// shells as an explicit state machine. All mutation flows through named
// actions consumed by a pure transition function; the Store wrapper adds
// driver subscriptions and side effects around it.
package shellstore

import (
	"time"

	"quill/internal/domain"
)

// State is an immutable snapshot of the background shell panel.
type State struct {
	Shells  []domain.BackgroundShell // registration order
	Visible bool
}

// Action is the tagged union of state transitions.
type Action interface{ isAction() }

// RegisterShell creates a running entry. Calling it twice for the same pid
// is a caller error; the reducer keeps the first entry.
type RegisterShell struct {
	PID           int
	Command       string
	InitialOutput string
	IsBinary      bool
	BinaryBytes   int64
}

// AppendShellOutput appends a chunk to a running shell. No-op when the shell
// is not tracked (it may already have been dismissed) or not running.
type AppendShellOutput struct {
	PID   int
	Chunk string
}

// UpdateShell merges a partial update into a tracked shell.
type UpdateShell struct {
	PID   int
	Patch ShellPatch
}

// ShellPatch carries the fields UpdateShell may merge.
type ShellPatch struct {
	Status      domain.ShellStatus
	ExitCode    *int
	IsBinary    bool
	BinaryBytes int64
}

// DismissShell removes an entry. Kill and unsubscribe side effects are the
// Store's responsibility and happen before the reducer runs.
type DismissShell struct{ PID int }

// SetVisibility sets whether the background panel is shown. Pure UI flag,
// independent of process state.
type SetVisibility struct{ Visible bool }

// ToggleVisibility flips the panel flag.
type ToggleVisibility struct{}

// SyncBackgroundShells reconciles the shell list when visibility turns on,
// picking up shells registered while the panel was hidden.
type SyncBackgroundShells struct {
	Shells []domain.BackgroundShell
}

func (RegisterShell) isAction()        {}
func (AppendShellOutput) isAction()    {}
func (UpdateShell) isAction()          {}
func (DismissShell) isAction()         {}
func (SetVisibility) isAction()        {}
func (ToggleVisibility) isAction()     {}
func (SyncBackgroundShells) isAction() {}

// Apply is the pure transition function: it returns a new snapshot and never
// mutates its input. Unknown pids are a no-op for every action.
func Apply(s State, a Action) State {
	switch a := a.(type) {
	case RegisterShell:
		if indexOf(s.Shells, a.PID) >= 0 {
			return s
		}
		next := cloneShells(s.Shells)
		next = append(next, domain.BackgroundShell{
			PID:         a.PID,
			Command:     a.Command,
			Status:      domain.ShellStatusRunning,
			Output:      a.InitialOutput,
			IsBinary:    a.IsBinary,
			BinaryBytes: a.BinaryBytes,
			StartedAt:   time.Now(),
		})
		return State{Shells: next, Visible: s.Visible}

	case AppendShellOutput:
		i := indexOf(s.Shells, a.PID)
		if i < 0 || s.Shells[i].Status != domain.ShellStatusRunning {
			return s
		}
		next := cloneShells(s.Shells)
		next[i].Output += a.Chunk
		return State{Shells: next, Visible: s.Visible}

	case UpdateShell:
		i := indexOf(s.Shells, a.PID)
		if i < 0 {
			return s
		}
		next := cloneShells(s.Shells)
		if a.Patch.Status != "" {
			next[i].Status = a.Patch.Status
			if a.Patch.Status == domain.ShellStatusExited {
				now := time.Now()
				next[i].ExitedAt = &now
			}
		}
		if a.Patch.ExitCode != nil {
			next[i].ExitCode = a.Patch.ExitCode
		}
		if a.Patch.IsBinary {
			next[i].IsBinary = true
		}
		if a.Patch.BinaryBytes > next[i].BinaryBytes {
			next[i].BinaryBytes = a.Patch.BinaryBytes
		}
		return State{Shells: next, Visible: s.Visible}

	case DismissShell:
		i := indexOf(s.Shells, a.PID)
		if i < 0 {
			return s
		}
		next := cloneShells(s.Shells)
		next = append(next[:i], next[i+1:]...)
		return State{Shells: next, Visible: s.Visible}

	case SetVisibility:
		return State{Shells: s.Shells, Visible: a.Visible}

	case ToggleVisibility:
		return State{Shells: s.Shells, Visible: !s.Visible}

	case SyncBackgroundShells:
		merged := cloneShells(s.Shells)
		for _, sh := range a.Shells {
			if indexOf(merged, sh.PID) < 0 {
				merged = append(merged, sh)
			}
		}
		return State{Shells: merged, Visible: s.Visible}
	}
	return s
}

func indexOf(shells []domain.BackgroundShell, pid int) int {
	for i := range shells {
		if shells[i].PID == pid {
			return i
		}
	}
	return -1
}

func cloneShells(shells []domain.BackgroundShell) []domain.BackgroundShell {
	cp := make([]domain.BackgroundShell, len(shells))
	copy(cp, shells)
	return cp
}
