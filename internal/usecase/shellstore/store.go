package shellstore

import (
	"context"
	"log/slog"
	"sync"

	"quill/internal/domain"
)

// ProcessDriver is the slice of the execution driver the store depends on.
type ProcessDriver interface {
	Subscribe(pid int, cb func(domain.OutputEvent)) func()
	OnExit(pid int, cb func(domain.ExecutionResult)) func()
	Kill(pid int)
}

// FinalizeFunc receives a shell's final state exactly once, when it exits or
// is dismissed while still running. Used to emit the deferred history and
// transcript entries for backgrounded commands.
type FinalizeFunc func(shell domain.BackgroundShell, res domain.ExecutionResult)

// Store owns every BackgroundShell entry and its driver subscriptions.
// Mutation is confined to Dispatch, giving one linearizable sequence of
// transitions.
type Store struct {
	mu        sync.Mutex
	state     State
	unsubs    map[int][]func()
	finalized map[int]bool

	driver   ProcessDriver
	finalize FinalizeFunc
	onChange func(State)
	bus      domain.EventBus
	logger   *slog.Logger
}

// New creates a Store bound to a driver. bus may be nil.
func New(driver ProcessDriver, bus domain.EventBus, logger *slog.Logger) *Store {
	return &Store{
		state:     State{},
		unsubs:    make(map[int][]func()),
		finalized: make(map[int]bool),
		driver:    driver,
		bus:       bus,
		logger:    logger,
	}
}

// SetFinalizer registers the exactly-once final-outcome callback.
func (s *Store) SetFinalizer(fn FinalizeFunc) {
	s.mu.Lock()
	s.finalize = fn
	s.mu.Unlock()
}

// SetOnChange registers a snapshot listener invoked after every transition.
func (s *Store) SetOnChange(fn func(State)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Snapshot returns the current immutable state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Track registers a freshly backgrounded shell and takes over its event
// stream from the driver. The count of running shells always equals the
// number of active subscriptions held here. Registration happens before the
// subscriptions: OnExit fires synchronously for a process that already
// exited, and that transition needs the entry in place.
func (s *Store) Track(pid int, command, initialOutput string, isBinary bool, binaryBytes int64) {
	s.dispatch(RegisterShell{
		PID:           pid,
		Command:       command,
		InitialOutput: initialOutput,
		IsBinary:      isBinary,
		BinaryBytes:   binaryBytes,
	})

	unsubEvents := s.driver.Subscribe(pid, func(ev domain.OutputEvent) {
		switch ev.Kind {
		case domain.OutputData:
			s.dispatch(AppendShellOutput{PID: pid, Chunk: ev.Chunk})
		case domain.OutputBinaryDetected:
			s.dispatch(UpdateShell{PID: pid, Patch: ShellPatch{IsBinary: true}})
		case domain.OutputBinaryProgress:
			s.dispatch(UpdateShell{PID: pid, Patch: ShellPatch{IsBinary: true, BinaryBytes: ev.BytesReceived}})
		}
	})
	unsubExit := s.driver.OnExit(pid, func(res domain.ExecutionResult) {
		s.dispatch(UpdateShell{PID: pid, Patch: ShellPatch{
			Status:   domain.ShellStatusExited,
			ExitCode: res.ExitCode,
		}})
		s.finalizeOnce(pid, res)
	})

	s.mu.Lock()
	s.unsubs[pid] = []func(){unsubEvents, unsubExit}
	s.mu.Unlock()

	s.logger.Info("background shell registered", "pid", pid, "command", command)
}

// Dismiss permanently removes a shell. A still-running shell is killed
// first; its subscription is released synchronously before the entry
// disappears so late events cannot resurrect the record. Dismissing an
// unknown or already-dismissed pid is a no-op.
func (s *Store) Dismiss(pid int) {
	s.mu.Lock()
	i := indexOf(s.state.Shells, pid)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	shell := s.state.Shells[i]
	running := shell.Status == domain.ShellStatusRunning
	for _, unsub := range s.unsubs[pid] {
		unsub()
	}
	delete(s.unsubs, pid)
	s.mu.Unlock()

	if running {
		s.driver.Kill(pid)
		shell.Status = domain.ShellStatusDismissed
		s.finalizeOnce(pid, domain.ExecutionResult{PID: pid, Output: shell.Output, Signal: "killed"})
	}

	s.dispatch(DismissShell{PID: pid})
	s.publish(domain.EventShellDismissed, domain.ShellEventPayload{PID: pid, Command: shell.Command})
	s.logger.Info("background shell dismissed", "pid", pid, "was_running", running)
}

// SetVisible shows or hides the panel. Turning visibility on triggers the
// reconciliation action so shells registered while hidden are picked up.
func (s *Store) SetVisible(visible bool) {
	s.dispatch(SetVisibility{Visible: visible})
	if visible {
		s.dispatch(SyncBackgroundShells{Shells: s.Snapshot().Shells})
	}
}

// Toggle flips panel visibility.
func (s *Store) Toggle() {
	s.dispatch(ToggleVisibility{})
	if s.Snapshot().Visible {
		s.dispatch(SyncBackgroundShells{Shells: s.Snapshot().Shells})
	}
}

// RunningCount reports how many tracked shells are still running.
func (s *Store) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sh := range s.state.Shells {
		if sh.Status == domain.ShellStatusRunning {
			n++
		}
	}
	return n
}

// DismissAll dismisses every tracked shell. Used on shutdown.
func (s *Store) DismissAll() {
	for _, sh := range s.Snapshot().Shells {
		s.Dismiss(sh.PID)
	}
}

func (s *Store) dispatch(a Action) {
	s.mu.Lock()
	s.state = Apply(s.state, a)
	snapshot := s.state
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
}

func (s *Store) finalizeOnce(pid int, res domain.ExecutionResult) {
	s.mu.Lock()
	if s.finalized[pid] || s.finalize == nil {
		s.mu.Unlock()
		return
	}
	s.finalized[pid] = true
	fn := s.finalize
	i := indexOf(s.state.Shells, pid)
	var shell domain.BackgroundShell
	if i >= 0 {
		shell = s.state.Shells[i]
	} else {
		shell = domain.BackgroundShell{PID: pid}
	}
	s.mu.Unlock()

	fn(shell, res)
}

func (s *Store) publish(t domain.EventType, payload domain.ShellEventPayload) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(context.Background(), domain.NewShellEvent(t, payload))
}
