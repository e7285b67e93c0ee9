// Package shellexec spawns shell commands and normalizes their output into a
// single ordered event stream with sticky binary detection, background
// handoff, and exactly-once exit notification.
package shellexec

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"quill/internal/domain"
)

// DefaultOutputBufferMax bounds the raw capture buffer per process.
const DefaultOutputBufferMax = 1024 * 1024

const readChunkSize = 32 * 1024

// Request describes one command to execute.
type Request struct {
	Command     string // passed to the platform shell verbatim
	WorkDir     string // must exist; empty means inherit
	Interactive bool   // allocate a pseudo-terminal
	Cols        uint16 // terminal width, used only when Interactive
	Rows        uint16 // terminal height, used only when Interactive
}

// EventFunc receives output events for one process. Calls are serialized.
type EventFunc func(domain.OutputEvent)

// ExitFunc receives the terminal result for one process, exactly once.
type ExitFunc func(domain.ExecutionResult)

// Execution is the live handle returned by Execute. PID is zero when the
// process failed to spawn; Result resolves exactly once in every case.
type Execution struct {
	PID    int
	Result <-chan domain.ExecutionResult
}

type proc struct {
	pid     int
	cmd     *exec.Cmd
	ptmx    *os.File // nil unless interactive
	command string

	mu           sync.Mutex
	fg           EventFunc
	bg           EventFunc
	exitSubs     map[uint64]ExitFunc
	nextSubID    uint64
	backgrounded bool
	exited       bool
	aborted      bool
	binary       bool
	finalRes     *domain.ExecutionResult // set once exited

	raw      *ringBuffer
	text     strings.Builder
	resultCh chan domain.ExecutionResult
	resolved bool // foreground result already delivered (exit or background transfer)
}

// Driver spawns one process per Execute call and owns its handle until exit.
// Results of backgrounded processes that exit before their consumer attaches
// are retained in done until OnExit collects them.
type Driver struct {
	mu     sync.Mutex
	procs  map[int]*proc
	done   map[int]domain.ExecutionResult
	bufMax int
	bus    domain.EventBus
	logger *slog.Logger
}

// NewDriver creates a Driver. bus may be nil.
func NewDriver(outputBufferMax int, bus domain.EventBus, logger *slog.Logger) *Driver {
	if outputBufferMax <= 0 {
		outputBufferMax = DefaultOutputBufferMax
	}
	return &Driver{
		procs:  make(map[int]*proc),
		done:   make(map[int]domain.ExecutionResult),
		bufMax: outputBufferMax,
		bus:    bus,
		logger: logger,
	}
}

// Execute starts the command and streams its output to onEvent until the
// process exits or is backgrounded. Spawn failures are not returned: they
// resolve the result immediately with Err set and a zero PID. ctx cancels
// the run; cancellation terminates the process unless it has been
// backgrounded first, in which case the process outlives the turn.
func (d *Driver) Execute(ctx context.Context, req Request, onEvent EventFunc) *Execution {
	resultCh := make(chan domain.ExecutionResult, 1)

	shell, flag := platformShell()
	cmd := exec.Command(shell, flag, req.Command)
	cmd.Dir = req.WorkDir

	p := &proc{
		cmd:      cmd,
		command:  req.Command,
		fg:       onEvent,
		exitSubs: make(map[uint64]ExitFunc),
		raw:      newRingBuffer(d.bufMax),
		resultCh: resultCh,
	}

	var reader io.ReadCloser
	var spawnErr error
	if req.Interactive {
		var ptmx *os.File
		ptmx, spawnErr = openPTY(cmd, req.Cols, req.Rows)
		if spawnErr == nil {
			p.ptmx = ptmx
			reader = ptmx
		}
	} else {
		reader, spawnErr = startPiped(cmd)
	}
	if spawnErr != nil {
		resultCh <- domain.ExecutionResult{Err: domain.WrapOp("shellexec.Execute", spawnErr)}
		return &Execution{Result: resultCh}
	}

	p.pid = cmd.Process.Pid

	d.mu.Lock()
	d.procs[p.pid] = p
	d.mu.Unlock()

	d.publish(domain.EventShellStarted, domain.ShellEventPayload{PID: p.pid, Command: req.Command})
	d.logger.Debug("process started", "pid", p.pid, "interactive", req.Interactive)

	abortDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			terminate := !p.backgrounded && !p.exited
			if terminate {
				p.aborted = true
			}
			p.mu.Unlock()
			if terminate {
				d.terminate(p)
			}
		case <-abortDone:
		}
	}()

	go d.run(p, reader, abortDone)

	return &Execution{PID: p.pid, Result: resultCh}
}

// Subscribe attaches the background consumer for pid. Events flow to it only
// after Background(pid). Returns an unsubscribe func; both are no-ops when
// the pid is no longer tracked.
func (d *Driver) Subscribe(pid int, cb func(domain.OutputEvent)) func() {
	p := d.get(pid)
	if p == nil {
		return func() {}
	}
	p.mu.Lock()
	p.bg = cb
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.bg = nil
		p.mu.Unlock()
	}
}

// OnExit registers cb to receive the terminal result for pid. Returns an
// unsubscribe func. The callback fires exactly once, after all output events
// have been delivered. A pid that has already exited gets the retained final
// result synchronously, so a consumer attaching after a backgrounded process
// died still observes the exit.
func (d *Driver) OnExit(pid int, cb func(domain.ExecutionResult)) func() {
	p := d.get(pid)
	if p == nil {
		d.mu.Lock()
		res, ok := d.done[pid]
		if ok {
			delete(d.done, pid)
		}
		d.mu.Unlock()
		if ok {
			cb(res)
		}
		return func() {}
	}

	p.mu.Lock()
	if p.exited {
		res := p.finalRes
		p.mu.Unlock()
		if res != nil {
			cb(*res)
		}
		return func() {}
	}
	p.nextSubID++
	id := p.nextSubID
	p.exitSubs[id] = cb
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.exitSubs, id)
		p.mu.Unlock()
	}
}

// Background detaches pid from the foreground: the pending foreground result
// resolves immediately with Backgrounded set and a snapshot of the output so
// far, and subsequent events flow to the background subscriber. No-op for an
// unknown pid. The process itself keeps running.
func (d *Driver) Background(pid int) {
	p := d.get(pid)
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgrounded || p.exited {
		return
	}
	p.backgrounded = true
	p.fg = nil
	if !p.resolved {
		p.resolved = true
		p.resultCh <- domain.ExecutionResult{
			PID:          p.pid,
			Backgrounded: true,
			Output:       p.text.String(),
			RawOutput:    p.raw.Bytes(),
			IsBinary:     p.binary,
			BinaryBytes:  p.raw.TotalWritten(),
		}
	}
	d.publish(domain.EventShellBackgrounded, domain.ShellEventPayload{PID: pid, Command: p.command})
}

// Kill requests termination of pid. Idempotent; unknown or already-exited
// pids are a no-op.
func (d *Driver) Kill(pid int) {
	p := d.get(pid)
	if p == nil {
		return
	}
	p.mu.Lock()
	dead := p.exited
	p.mu.Unlock()
	if !dead {
		d.terminate(p)
	}
}

// Shutdown kills every process still tracked. Used on application exit.
func (d *Driver) Shutdown() {
	d.mu.Lock()
	live := make([]*proc, 0, len(d.procs))
	for _, p := range d.procs {
		live = append(live, p)
	}
	d.mu.Unlock()
	for _, p := range live {
		d.terminate(p)
	}
}

func (d *Driver) get(pid int) *proc {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.procs[pid]
}

// run owns the single reader goroutine for one process: it drains output,
// classifies binary mode, delivers events to whichever consumer currently
// holds the stream, then reaps the process and fires the exit notification.
func (d *Driver) run(p *proc, reader io.ReadCloser, abortDone chan struct{}) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			p.deliverChunk(buf[:n])
		}
		if err != nil {
			// EOF, or EIO from a closed PTY slave; both mean the stream ended.
			break
		}
	}
	reader.Close()

	waitErr := p.cmd.Wait()
	close(abortDone)

	p.mu.Lock()
	p.exited = true
	res := domain.ExecutionResult{
		PID:         p.pid,
		Output:      p.text.String(),
		RawOutput:   p.raw.Bytes(),
		IsBinary:    p.binary,
		BinaryBytes: p.raw.TotalWritten(),
	}
	switch {
	case p.aborted:
		res.Aborted = true
	case waitErr == nil:
		code := 0
		res.ExitCode = &code
	default:
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			if sig := exitSignal(exitErr); sig != "" {
				res.Signal = sig
			} else {
				code := exitErr.ExitCode()
				res.ExitCode = &code
			}
		} else {
			res.Err = domain.WrapOp("shellexec.wait", waitErr)
		}
	}
	p.finalRes = &res

	subs := make([]ExitFunc, 0, len(p.exitSubs))
	for _, cb := range p.exitSubs {
		subs = append(subs, cb)
	}
	p.exitSubs = nil
	alreadyResolved := p.resolved
	p.resolved = true
	// A backgrounded process whose consumer has not attached yet must not
	// lose its exit: retain the result for the late OnExit.
	retain := p.backgrounded && len(subs) == 0
	p.mu.Unlock()

	// The handle is released before notification: after exit the Driver
	// holds nothing for this pid except a retained result.
	d.mu.Lock()
	delete(d.procs, p.pid)
	if retain {
		d.done[p.pid] = res
	}
	d.mu.Unlock()

	if !alreadyResolved {
		p.resultCh <- res
	}
	for _, cb := range subs {
		cb(res)
	}

	d.publish(domain.EventShellExited, domain.ShellEventPayload{
		PID: p.pid, Command: p.command, ExitCode: res.ExitCode, Signal: res.Signal,
	})
	d.logger.Debug("process exited", "pid", p.pid, "aborted", res.Aborted, "signal", res.Signal)
}

// deliverChunk records a chunk and emits the corresponding event to the
// current consumer. Holding p.mu across the callback makes the
// foreground-to-background handoff atomic: no event reaches the old consumer
// after Background returns.
func (p *proc) deliverChunk(chunk []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.raw.Write(chunk)

	var ev domain.OutputEvent
	if !p.binary && p.raw.TotalWritten() <= binarySniffLimit && looksBinary(p.raw.Bytes()) {
		p.binary = true
		p.emit(domain.OutputEvent{Kind: domain.OutputBinaryDetected})
	}
	if p.binary {
		ev = domain.OutputEvent{Kind: domain.OutputBinaryProgress, BytesReceived: p.raw.TotalWritten()}
	} else {
		p.text.Write(chunk)
		ev = domain.OutputEvent{Kind: domain.OutputData, Chunk: string(chunk)}
	}
	p.emit(ev)
}

// emit routes an event to the active consumer. Caller holds p.mu.
func (p *proc) emit(ev domain.OutputEvent) {
	if p.backgrounded {
		if p.bg != nil {
			p.bg(ev)
		}
		return
	}
	if p.fg != nil {
		p.fg(ev)
	}
}

// terminate kills the process (and on unix its whole group, so pipelines and
// subshells die with their parent). Escalates after a grace period.
func (d *Driver) terminate(p *proc) {
	if p.ptmx != nil {
		_ = p.ptmx.Close()
	}
	if p.cmd.Process == nil {
		return
	}
	terminateGroup(p.cmd)
	go func() {
		time.Sleep(2 * time.Second)
		p.mu.Lock()
		dead := p.exited
		p.mu.Unlock()
		if !dead {
			killGroup(p.cmd)
		}
	}()
}

func (d *Driver) publish(t domain.EventType, payload domain.ShellEventPayload) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(context.Background(), domain.NewShellEvent(t, payload))
}

// startPiped wires stdout and stderr to a single pipe so interleaving order
// is preserved, and isolates the child for group kills where the platform
// supports it.
func startPiped(cmd *exec.Cmd) (io.ReadCloser, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = pw
	cmd.Stderr = pw
	setProcGroup(cmd)
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, err
	}
	// Parent must drop its copy of the write end or reads never hit EOF.
	pw.Close()
	return pr, nil
}
