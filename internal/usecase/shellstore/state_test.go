package shellstore

import (
	"testing"

	"quill/internal/domain"
)

func register(s State, pid int, command string) State {
	return Apply(s, RegisterShell{PID: pid, Command: command})
}

func TestRegisterShell(t *testing.T) {
	s := register(State{}, 100, "sleep 60")

	if len(s.Shells) != 1 {
		t.Fatalf("len(Shells) = %d, want 1", len(s.Shells))
	}
	sh := s.Shells[0]
	if sh.PID != 100 || sh.Command != "sleep 60" {
		t.Errorf("unexpected shell %+v", sh)
	}
	if sh.Status != domain.ShellStatusRunning {
		t.Errorf("Status = %q, want running", sh.Status)
	}
	if sh.StartedAt.IsZero() {
		t.Error("StartedAt must be set")
	}
}

func TestRegisterShellDuplicateKeepsFirst(t *testing.T) {
	s := register(State{}, 100, "first")
	s = register(s, 100, "second")

	if len(s.Shells) != 1 {
		t.Fatalf("len(Shells) = %d, want 1", len(s.Shells))
	}
	if s.Shells[0].Command != "first" {
		t.Errorf("duplicate registration replaced the entry: %q", s.Shells[0].Command)
	}
}

func TestAppendShellOutput(t *testing.T) {
	s := register(State{}, 100, "tail -f log")
	s = Apply(s, AppendShellOutput{PID: 100, Chunk: "line 1\n"})
	s = Apply(s, AppendShellOutput{PID: 100, Chunk: "line 2\n"})

	if got := s.Shells[0].Output; got != "line 1\nline 2\n" {
		t.Errorf("Output = %q", got)
	}
}

func TestAppendShellOutputUnknownPID(t *testing.T) {
	s := Apply(State{}, AppendShellOutput{PID: 42, Chunk: "x"})
	if len(s.Shells) != 0 {
		t.Error("unknown pid must be a no-op")
	}
}

func TestAppendShellOutputAfterExit(t *testing.T) {
	s := register(State{}, 100, "true")
	s = Apply(s, UpdateShell{PID: 100, Patch: ShellPatch{Status: domain.ShellStatusExited}})
	s = Apply(s, AppendShellOutput{PID: 100, Chunk: "late"})

	if s.Shells[0].Output != "" {
		t.Errorf("output appended after exit: %q", s.Shells[0].Output)
	}
}

func TestUpdateShellExit(t *testing.T) {
	s := register(State{}, 100, "false")
	code := 1
	s = Apply(s, UpdateShell{PID: 100, Patch: ShellPatch{
		Status:   domain.ShellStatusExited,
		ExitCode: &code,
	}})

	sh := s.Shells[0]
	if sh.Status != domain.ShellStatusExited {
		t.Errorf("Status = %q, want exited", sh.Status)
	}
	if sh.ExitCode == nil || *sh.ExitCode != 1 {
		t.Errorf("ExitCode = %v, want 1", sh.ExitCode)
	}
	if sh.ExitedAt == nil {
		t.Error("ExitedAt must be set on exit")
	}
}

func TestUpdateShellBinaryProgressIsMonotonic(t *testing.T) {
	s := register(State{}, 100, "cat blob")
	s = Apply(s, UpdateShell{PID: 100, Patch: ShellPatch{IsBinary: true, BinaryBytes: 4096}})
	s = Apply(s, UpdateShell{PID: 100, Patch: ShellPatch{IsBinary: true, BinaryBytes: 1024}})

	sh := s.Shells[0]
	if !sh.IsBinary {
		t.Error("IsBinary must stick")
	}
	if sh.BinaryBytes != 4096 {
		t.Errorf("BinaryBytes = %d, want monotonic 4096", sh.BinaryBytes)
	}
}

func TestDismissShell(t *testing.T) {
	s := register(State{}, 100, "a")
	s = register(s, 200, "b")
	s = Apply(s, DismissShell{PID: 100})

	if len(s.Shells) != 1 || s.Shells[0].PID != 200 {
		t.Errorf("unexpected shells after dismiss: %+v", s.Shells)
	}

	// Dismissing again is a no-op.
	s = Apply(s, DismissShell{PID: 100})
	if len(s.Shells) != 1 {
		t.Error("second dismiss must not change state")
	}
}

func TestVisibility(t *testing.T) {
	s := Apply(State{}, SetVisibility{Visible: true})
	if !s.Visible {
		t.Error("SetVisibility(true) failed")
	}
	s = Apply(s, ToggleVisibility{})
	if s.Visible {
		t.Error("toggle should hide")
	}
	s = Apply(s, ToggleVisibility{})
	if !s.Visible {
		t.Error("toggle should show")
	}
}

func TestSyncBackgroundShellsMergesNew(t *testing.T) {
	s := register(State{}, 100, "a")
	s = Apply(s, SyncBackgroundShells{Shells: []domain.BackgroundShell{
		{PID: 100, Command: "stale copy"},
		{PID: 200, Command: "b", Status: domain.ShellStatusRunning},
	}})

	if len(s.Shells) != 2 {
		t.Fatalf("len(Shells) = %d, want 2", len(s.Shells))
	}
	if s.Shells[0].Command != "a" {
		t.Error("sync must not overwrite existing entries")
	}
	if s.Shells[1].PID != 200 {
		t.Errorf("missing merged shell: %+v", s.Shells[1])
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := register(State{}, 100, "a")
	before := s.Shells[0].Output

	_ = Apply(s, AppendShellOutput{PID: 100, Chunk: "mutated?"})

	if s.Shells[0].Output != before {
		t.Error("Apply mutated its input state")
	}
}
