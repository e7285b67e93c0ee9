package shellexec

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"quill/internal/domain"
)

func newTestDriver() *Driver {
	return NewDriver(0, nil, slog.Default())
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("posix shell semantics")
	}
}

// eventSink collects output events in order.
type eventSink struct {
	mu     sync.Mutex
	events []domain.OutputEvent
}

func (s *eventSink) fn(ev domain.OutputEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *eventSink) text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sb strings.Builder
	for _, ev := range s.events {
		if ev.Kind == domain.OutputData {
			sb.WriteString(ev.Chunk)
		}
	}
	return sb.String()
}

func waitResult(t *testing.T, exec *Execution) domain.ExecutionResult {
	t.Helper()
	select {
	case res := <-exec.Result:
		return res
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for result")
		return domain.ExecutionResult{}
	}
}

func TestExecuteCapturesOutput(t *testing.T) {
	skipOnWindows(t)
	d := newTestDriver()
	defer d.Shutdown()

	var sink eventSink
	exec := d.Execute(context.Background(), Request{Command: "printf 'hello-world'"}, sink.fn)
	if exec.PID == 0 {
		t.Fatal("expected nonzero pid")
	}

	res := waitResult(t, exec)
	if res.ExitCode == nil || *res.ExitCode != 0 {
		t.Fatalf("ExitCode = %v, want 0", res.ExitCode)
	}
	if res.Output != "hello-world" {
		t.Errorf("Output = %q", res.Output)
	}
	if sink.text() != "hello-world" {
		t.Errorf("streamed text = %q", sink.text())
	}
	if res.IsBinary {
		t.Error("text output classified as binary")
	}
}

func TestExecuteNonZeroExit(t *testing.T) {
	skipOnWindows(t)
	d := newTestDriver()
	defer d.Shutdown()

	exec := d.Execute(context.Background(), Request{Command: "exit 3"}, nil)
	res := waitResult(t, exec)

	if res.ExitCode == nil || *res.ExitCode != 3 {
		t.Fatalf("ExitCode = %v, want 3", res.ExitCode)
	}
	if res.Err != nil || res.Aborted || res.Backgrounded || res.Signal != "" {
		t.Errorf("exit code must be the only cause: %+v", res)
	}
}

func TestExecuteInterleavesStderr(t *testing.T) {
	skipOnWindows(t)
	d := newTestDriver()
	defer d.Shutdown()

	exec := d.Execute(context.Background(), Request{Command: "echo out; echo err 1>&2; echo out2"}, nil)
	res := waitResult(t, exec)

	if res.Output != "out\nerr\nout2\n" {
		t.Errorf("Output = %q, want interleaved stdout+stderr", res.Output)
	}
}

func TestExecuteSpawnFailure(t *testing.T) {
	skipOnWindows(t)
	d := newTestDriver()
	defer d.Shutdown()

	exec := d.Execute(context.Background(), Request{
		Command: "echo never",
		WorkDir: "/nonexistent/quill-test-dir",
	}, nil)

	if exec.PID != 0 {
		t.Errorf("PID = %d, want 0 on spawn failure", exec.PID)
	}
	res := waitResult(t, exec)
	if res.Err == nil {
		t.Fatal("expected spawn error in result")
	}
	if res.ExitCode != nil {
		t.Error("spawn failure must not carry an exit code")
	}
}

func TestExecuteBinaryDetection(t *testing.T) {
	skipOnWindows(t)
	d := newTestDriver()
	defer d.Shutdown()

	var sink eventSink
	exec := d.Execute(context.Background(), Request{Command: "head -c 2048 /dev/zero"}, sink.fn)
	res := waitResult(t, exec)

	if !res.IsBinary {
		t.Fatal("NUL-filled output must classify as binary")
	}
	if res.BinaryBytes != 2048 {
		t.Errorf("BinaryBytes = %d, want 2048", res.BinaryBytes)
	}
	if res.Output != "" {
		t.Errorf("no text must accumulate after binary detection, got %q", res.Output)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	sawDetected := false
	for _, ev := range sink.events {
		if ev.Kind == domain.OutputBinaryDetected {
			if sawDetected {
				t.Error("binary detection must fire at most once")
			}
			sawDetected = true
		}
		if sawDetected && ev.Kind == domain.OutputData {
			t.Error("no data events after binary detection")
		}
	}
	if !sawDetected {
		t.Error("expected a binary detection event")
	}
}

func TestKillDeliversSignal(t *testing.T) {
	skipOnWindows(t)
	d := newTestDriver()
	defer d.Shutdown()

	exec := d.Execute(context.Background(), Request{Command: "sleep 30"}, nil)

	time.Sleep(100 * time.Millisecond)
	d.Kill(exec.PID)
	d.Kill(exec.PID) // idempotent

	res := waitResult(t, exec)
	if res.Signal != "terminated" {
		t.Errorf("Signal = %q, want %q", res.Signal, "terminated")
	}
	if res.ExitCode != nil {
		t.Error("signaled exit must not carry an exit code")
	}
}

func TestAbortViaContext(t *testing.T) {
	skipOnWindows(t)
	d := newTestDriver()
	defer d.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	exec := d.Execute(ctx, Request{Command: "sleep 30"}, nil)

	time.Sleep(100 * time.Millisecond)
	cancel()

	res := waitResult(t, exec)
	if !res.Aborted {
		t.Fatalf("expected aborted result, got %+v", res)
	}
	if res.Signal != "" || res.ExitCode != nil {
		t.Error("abort must be the single cause")
	}
}

func TestBackgroundHandoff(t *testing.T) {
	skipOnWindows(t)
	d := newTestDriver()
	defer d.Shutdown()

	var fg eventSink
	exec := d.Execute(context.Background(), Request{Command: "echo first; sleep 0.4; echo second"}, fg.fn)

	// Let the first chunk land in the foreground.
	time.Sleep(150 * time.Millisecond)

	var bg eventSink
	unsub := d.Subscribe(exec.PID, bg.fn)
	defer unsub()

	exitCh := make(chan domain.ExecutionResult, 1)
	d.OnExit(exec.PID, func(res domain.ExecutionResult) { exitCh <- res })

	d.Background(exec.PID)

	// The foreground result resolves immediately with the transfer snapshot.
	res := waitResult(t, exec)
	if !res.Backgrounded {
		t.Fatalf("expected backgrounded result, got %+v", res)
	}
	if !strings.Contains(res.Output, "first") {
		t.Errorf("transfer snapshot missing early output: %q", res.Output)
	}
	if strings.Contains(res.Output, "second") {
		t.Error("transfer snapshot must not contain output from after the handoff")
	}

	// Later output flows to the background subscriber, then the exit fires.
	select {
	case final := <-exitCh:
		if final.ExitCode == nil || *final.ExitCode != 0 {
			t.Fatalf("final ExitCode = %v, want 0", final.ExitCode)
		}
		if !strings.Contains(final.Output, "second") {
			t.Errorf("final output missing late chunk: %q", final.Output)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for exit notification")
	}

	if !strings.Contains(bg.text(), "second") {
		t.Errorf("background subscriber missed the late chunk: %q", bg.text())
	}
	if strings.Contains(fg.text(), "second") {
		t.Error("foreground consumer received output after the handoff")
	}
}

func TestBackgroundThenAbortDoesNotKill(t *testing.T) {
	skipOnWindows(t)
	d := newTestDriver()
	defer d.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	exec := d.Execute(ctx, Request{Command: "sleep 0.4; echo survived"}, nil)

	exitCh := make(chan domain.ExecutionResult, 1)
	d.OnExit(exec.PID, func(res domain.ExecutionResult) { exitCh <- res })

	d.Background(exec.PID)
	waitResult(t, exec) // transfer snapshot

	// Cancelling the turn must not touch a backgrounded process.
	cancel()

	select {
	case final := <-exitCh:
		if final.Aborted {
			t.Error("backgrounded process was aborted by turn cancellation")
		}
		if !strings.Contains(final.Output, "survived") {
			t.Errorf("output = %q, want the process to run to completion", final.Output)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for exit")
	}
}

func TestOnExitAfterBackgroundedProcessExited(t *testing.T) {
	skipOnWindows(t)
	d := newTestDriver()
	defer d.Shutdown()

	exec := d.Execute(context.Background(), Request{Command: "echo done; exit 0"}, nil)
	d.Background(exec.PID)
	waitResult(t, exec) // transfer snapshot

	// Let the process exit before any background consumer attaches.
	deadline := time.Now().Add(10 * time.Second)
	for d.get(exec.PID) != nil {
		if time.Now().After(deadline) {
			t.Fatal("process never exited")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The retained result must be delivered to the late subscriber.
	exitCh := make(chan domain.ExecutionResult, 1)
	d.OnExit(exec.PID, func(res domain.ExecutionResult) { exitCh <- res })

	select {
	case final := <-exitCh:
		if final.ExitCode == nil || *final.ExitCode != 0 {
			t.Errorf("ExitCode = %v, want 0", final.ExitCode)
		}
		if !strings.Contains(final.Output, "done") {
			t.Errorf("Output = %q", final.Output)
		}
	case <-time.After(time.Second):
		t.Fatal("exit notification never reached a subscriber attached after exit")
	}

	// The retained result is consumed exactly once.
	fired := false
	d.OnExit(exec.PID, func(domain.ExecutionResult) { fired = true })
	if fired {
		t.Error("second OnExit after consumption must be a no-op")
	}
}

func TestSubscribeUnknownPID(t *testing.T) {
	d := newTestDriver()
	defer d.Shutdown()

	// Must be safe no-ops.
	unsub := d.Subscribe(99999999, func(domain.OutputEvent) {})
	unsub()
	unsubExit := d.OnExit(99999999, func(domain.ExecutionResult) {})
	unsubExit()
	d.Background(99999999)
	d.Kill(99999999)
}
