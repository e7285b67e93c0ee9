// Package shellrun coordinates one UI-initiated shell command with the
// execution driver and the background shell store: pending display updates,
// working-directory capture, background handoff, result formatting, and
// cleanup.
package shellrun

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"quill/internal/domain"
	"quill/internal/usecase/shellexec"
	"quill/internal/usecase/shellstore"
)

// DefaultRestoreDelay is how long the background panel stays hidden after a
// foreground shell finishes, to avoid flicker between successive turns.
const DefaultRestoreDelay = 300 * time.Millisecond

// Driver is the slice of the execution driver the runner depends on.
type Driver interface {
	Execute(ctx context.Context, req shellexec.Request, onEvent shellexec.EventFunc) *shellexec.Execution
	Background(pid int)
	Kill(pid int)
}

// HistorySink receives UI history entries. The terminal rendering layer
// implements this; the runner performs no painting itself.
type HistorySink interface {
	// AppendUserCommand records the "command issued" entry, before execution.
	AppendUserCommand(command string, ts time.Time)
	// AppendToolCall records one permanent invocation outcome.
	AppendToolCall(rec domain.ToolCallRecord)
	// AppendSystem records an ephemeral notice (not part of permanent history).
	AppendSystem(text string)
}

// Transcript receives the fixed-format conversation entries the agent reads.
type Transcript interface {
	AppendUserEntry(text string)
}

// InvocationRecorder persists completed invocations. May be nil.
type InvocationRecorder interface {
	Record(inv domain.ShellInvocation) error
}

// Config holds runner settings resolved from application config.
type Config struct {
	WorkDir          string
	Interactive      bool
	Cols             uint16
	Rows             uint16
	TranscriptMaxLen int
	RestoreDelay     time.Duration
}

// Runner is the single point of coordination between one UI-initiated
// command and the driver/store.
type Runner struct {
	driver  Driver
	store   *shellstore.Store
	history HistorySink
	agent   Transcript
	records InvocationRecorder
	cfg     Config
	logger  *slog.Logger
	sess    *session

	mu        sync.Mutex
	pending   *domain.ToolCallRecord
	onPending func(*domain.ToolCallRecord)
	onFocus   func()
	activePID int
}

// New creates a Runner. records may be nil; onPending and onFocus are set by
// the UI before the first command.
func New(driver Driver, store *shellstore.Store, history HistorySink, agent Transcript, records InvocationRecorder, cfg Config, logger *slog.Logger) *Runner {
	if cfg.RestoreDelay <= 0 {
		cfg.RestoreDelay = DefaultRestoreDelay
	}
	if cfg.TranscriptMaxLen <= 0 {
		cfg.TranscriptMaxLen = DefaultTranscriptMaxLen
	}
	r := &Runner{
		driver:  driver,
		store:   store,
		history: history,
		agent:   agent,
		records: records,
		cfg:     cfg,
		logger:  logger,
		sess:    newSession(),
	}
	store.SetFinalizer(r.finalizeBackgroundShell)
	return r
}

// SetPendingListener registers the callback painting the single mutable
// foreground display record. A nil record clears the display.
func (r *Runner) SetPendingListener(fn func(*domain.ToolCallRecord)) {
	r.mu.Lock()
	r.onPending = fn
	r.mu.Unlock()
}

// SetFocusListener registers the callback that returns input focus to the
// primary input surface after a run.
func (r *Runner) SetFocusListener(fn func()) {
	r.mu.Lock()
	r.onFocus = fn
	r.mu.Unlock()
}

// HandleShellCommand runs one already-approved command in the foreground.
// It returns false without starting a process for empty input, true
// otherwise. ctx carries the caller-driven abort signal; on abort the run
// still settles through the driver's result rather than being assumed dead.
func (r *Runner) HandleShellCommand(ctx context.Context, rawCommand string) (handled bool) {
	if strings.TrimSpace(rawCommand) == "" {
		return false
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("shell command handler panicked", "panic", rec)
			r.history.AppendSystem(fmt.Sprintf("An unexpected error occurred: %v", rec))
			r.clearPending()
			r.finishForeground()
		}
	}()

	// The issued entry and the eventual result entry share this timestamp
	// so they can be correlated and ordered.
	issuedAt := time.Now()
	r.history.AppendUserCommand(rawCommand, issuedAt)

	pwdFile := pwdCapturePath()
	commandLine := wrapForPwdCapture(rawCommand, pwdFile)
	defer removeIfPresent(pwdFile)

	pending := &domain.ToolCallRecord{
		CallID:      newCallID(),
		CommandText: rawCommand,
		Status:      domain.ToolCallExecuting,
		Timestamp:   issuedAt,
	}
	r.setPending(pending)

	exec := r.driver.Execute(ctx, shellexec.Request{
		Command:     commandLine,
		WorkDir:     r.cfg.WorkDir,
		Interactive: r.cfg.Interactive,
		Cols:        r.cfg.Cols,
		Rows:        r.cfg.Rows,
	}, r.handleForegroundEvent)

	if exec.PID != 0 {
		r.updatePending(func(p *domain.ToolCallRecord) { p.PID = exec.PID })
		r.setActivePID(exec.PID)
	}

	res := <-exec.Result

	r.clearPending()
	defer r.finishForeground()

	if res.Backgrounded {
		r.sess.markBackgrounded(res.PID)
		r.store.Track(res.PID, rawCommand, res.Output, res.IsBinary, res.BinaryBytes)
		_, text := FormatResult(res, r.cfg.WorkDir, "")
		r.history.AppendSystem(text)
		r.logger.Info("command backgrounded", "pid", res.PID, "command", rawCommand)
		return true
	}

	changedDir := readPwdCapture(pwdFile, r.cfg.WorkDir)
	status, text := FormatResult(res, r.cfg.WorkDir, changedDir)

	// Cancelled runs are dropped from permanent history to avoid noise but
	// still unblock the turn; the transcript always reflects what the
	// process actually produced.
	if status != domain.ToolCallCancelled {
		r.history.AppendToolCall(domain.ToolCallRecord{
			CallID:      pending.CallID,
			CommandText: rawCommand,
			Status:      status,
			ResultText:  text,
			PID:         res.PID,
			Timestamp:   issuedAt,
		})
	}
	r.agent.AppendUserEntry(ConversationEntry(rawCommand, TruncateForTranscript(text, r.cfg.TranscriptMaxLen)))
	r.recordInvocation(pending.CallID, rawCommand, status, res, issuedAt)

	return true
}

// BackgroundActive detaches the current foreground process, if any.
func (r *Runner) BackgroundActive() {
	r.mu.Lock()
	pid := r.activePID
	r.mu.Unlock()
	if pid != 0 {
		r.driver.Background(pid)
	}
}

// KillActive requests termination of the current foreground process.
func (r *Runner) KillActive() {
	r.mu.Lock()
	pid := r.activePID
	r.mu.Unlock()
	if pid != 0 {
		r.driver.Kill(pid)
	}
}

// ToggleVisibility is the manual panel toggle. It cancels any pending
// debounced restore so the automatic logic never overrides the user.
func (r *Runner) ToggleVisibility() {
	r.sess.cancelRestore()
	r.store.Toggle()
}

// KillShell requests termination of a background shell without dismissing
// it; the exit flows through the store like any other.
func (r *Runner) KillShell(pid int) {
	r.driver.Kill(pid)
}

// Dismiss removes a background shell, killing it first if still running.
func (r *Runner) Dismiss(pid int) {
	r.store.Dismiss(pid)
}

// Teardown disposes of the runner's session state.
func (r *Runner) Teardown() {
	r.sess.Teardown()
}

// handleForegroundEvent updates the pending display record. After a
// background handoff the driver stops routing events here; the guard
// covers events already in flight during the handoff.
func (r *Runner) handleForegroundEvent(ev domain.OutputEvent) {
	r.mu.Lock()
	pid := r.activePID
	r.mu.Unlock()
	if pid != 0 && r.sess.isBackgrounded(pid) {
		return
	}

	switch ev.Kind {
	case domain.OutputData:
		r.updatePending(func(p *domain.ToolCallRecord) { p.ResultText += ev.Chunk })
	case domain.OutputBinaryDetected:
		r.updatePending(func(p *domain.ToolCallRecord) { p.ResultText = "[binary output detected]" })
	case domain.OutputBinaryProgress:
		r.updatePending(func(p *domain.ToolCallRecord) {
			p.ResultText = fmt.Sprintf("[binary output: %d bytes received]", ev.BytesReceived)
		})
	}
}

// finalizeBackgroundShell emits the deferred history and transcript entries
// for a shell that was moved to the background, exactly once, when it exits
// or is dismissed while running.
func (r *Runner) finalizeBackgroundShell(shell domain.BackgroundShell, res domain.ExecutionResult) {
	status, text := FormatResult(res, r.cfg.WorkDir, "")
	r.history.AppendToolCall(domain.ToolCallRecord{
		CallID:      newCallID(),
		CommandText: shell.Command,
		Status:      status,
		ResultText:  text,
		PID:         shell.PID,
		Timestamp:   time.Now(),
	})
	r.agent.AppendUserEntry(ConversationEntry(shell.Command, TruncateForTranscript(text, r.cfg.TranscriptMaxLen)))
	r.logger.Info("background shell finalized", "pid", shell.PID, "status", status)
}

// setActivePID marks a foreground shell and force-hides the background
// panel, remembering that it was auto-hidden. A restore still pending from
// the previous turn is disarmed so it cannot re-show the panel mid-run.
func (r *Runner) setActivePID(pid int) {
	r.mu.Lock()
	r.activePID = pid
	r.mu.Unlock()

	r.sess.stopRestore()
	if r.store.Snapshot().Visible {
		r.store.SetVisible(false)
		r.sess.markAutoHidden(true)
	}
}

// finishForeground clears the active marker, schedules the debounced panel
// restore when it was auto-hidden, and returns focus to the input surface.
func (r *Runner) finishForeground() {
	r.mu.Lock()
	r.activePID = 0
	focus := r.onFocus
	r.mu.Unlock()

	if r.sess.wasAutoHidden() {
		r.sess.scheduleRestore(r.cfg.RestoreDelay, func() {
			r.sess.markAutoHidden(false)
			r.store.SetVisible(true)
		})
	}
	if focus != nil {
		focus()
	}
}

func (r *Runner) setPending(p *domain.ToolCallRecord) {
	r.mu.Lock()
	r.pending = p
	fn := r.onPending
	r.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (r *Runner) clearPending() {
	r.setPending(nil)
}

func (r *Runner) updatePending(mutate func(*domain.ToolCallRecord)) {
	r.mu.Lock()
	if r.pending == nil {
		r.mu.Unlock()
		return
	}
	cp := *r.pending
	mutate(&cp)
	r.pending = &cp
	fn := r.onPending
	r.mu.Unlock()
	if fn != nil {
		fn(&cp)
	}
}

func (r *Runner) recordInvocation(callID, command string, status domain.ToolCallStatus, res domain.ExecutionResult, startedAt time.Time) {
	if r.records == nil {
		return
	}
	inv := domain.ShellInvocation{
		CallID:    callID,
		Command:   command,
		Status:    status,
		ExitCode:  res.ExitCode,
		WorkDir:   r.cfg.WorkDir,
		Output:    TruncateForTranscript(res.Output, r.cfg.TranscriptMaxLen),
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
	}
	if err := r.records.Record(inv); err != nil {
		r.logger.Warn("failed to persist invocation", "call_id", callID, "error", err)
	}
}

func newCallID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// pwdCapturePath returns a private per-invocation temp file path with a
// random suffix.
func pwdCapturePath() string {
	if runtime.GOOS == "windows" {
		return ""
	}
	return filepath.Join(os.TempDir(), "quill-pwd-"+uuid.NewString()+".tmp")
}

// wrapForPwdCapture arranges for the command's final working directory to be
// written to pwdFile after it runs, preserving the command's exit code. The
// capture is purely observational: each invocation starts from the
// configured directory afresh, and the file is only used to warn about a cd
// that will not persist.
func wrapForPwdCapture(raw, pwdFile string) string {
	if pwdFile == "" {
		return raw
	}
	return fmt.Sprintf("{ %s\n}; __quill_rc=$?; pwd > %q; exit $__quill_rc", raw, pwdFile)
}

// readPwdCapture returns the captured final directory when it differs from
// startDir, else the empty string. Missing or unreadable files are treated
// as no change.
func readPwdCapture(pwdFile, startDir string) string {
	if pwdFile == "" {
		return ""
	}
	data, err := os.ReadFile(pwdFile)
	if err != nil {
		return ""
	}
	dir := strings.TrimSpace(string(data))
	if dir == "" || dir == startDir {
		return ""
	}
	return dir
}

func removeIfPresent(path string) {
	if path == "" {
		return
	}
	// Tolerates the file already being gone.
	_ = os.Remove(path)
}
