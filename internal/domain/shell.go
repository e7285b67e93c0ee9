package domain

import "time"

// ShellStatus represents the lifecycle state of a tracked background shell.
type ShellStatus string

const (
	ShellStatusRunning   ShellStatus = "running"
	ShellStatusExited    ShellStatus = "exited"
	ShellStatusDismissed ShellStatus = "dismissed"
)

// OutputEventKind discriminates the OutputEvent tagged union.
type OutputEventKind int

const (
	// OutputData carries a chunk of text output.
	OutputData OutputEventKind = iota
	// OutputBinaryDetected marks the irreversible transition into binary mode.
	OutputBinaryDetected
	// OutputBinaryProgress reports cumulative bytes received while in binary mode.
	OutputBinaryProgress
)

// OutputEvent is one item in a process's output stream. For a given process
// the stream is: zero or more Data/BinaryProgress events, at most one
// BinaryDetected transition, then exactly one exit notification delivered via
// the separate exit callback.
type OutputEvent struct {
	Kind          OutputEventKind
	Chunk         string // set for OutputData
	BytesReceived int64  // set for OutputBinaryProgress
}

// ExecutionResult is produced exactly once, after the process has fully
// exited or been intercepted. Exactly one of Err, Aborted, Backgrounded,
// Signal, or a non-zero ExitCode is the cause that determines final status;
// Backgrounded means the other fields describe a transfer, not a termination.
type ExecutionResult struct {
	PID          int
	Backgrounded bool
	Output       string
	RawOutput    []byte
	IsBinary     bool
	BinaryBytes  int64
	ExitCode     *int
	Signal       string
	Err          error
	Aborted      bool
}

// BackgroundShell is a process the orchestrator no longer renders inline.
// It stays in the store after exit until the user dismisses it.
type BackgroundShell struct {
	PID         int         `json:"pid"`
	Command     string      `json:"command"`
	Status      ShellStatus `json:"status"`
	Output      string      `json:"output"`
	IsBinary    bool        `json:"is_binary"`
	BinaryBytes int64       `json:"binary_bytes"`
	ExitCode    *int        `json:"exit_code,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	ExitedAt    *time.Time  `json:"exited_at,omitempty"`
}

// ToolCallStatus is the UI/history-facing status of one shell invocation.
type ToolCallStatus string

const (
	ToolCallExecuting ToolCallStatus = "executing"
	ToolCallSuccess   ToolCallStatus = "success"
	ToolCallError     ToolCallStatus = "error"
	ToolCallCancelled ToolCallStatus = "cancelled"
)

// ToolCallRecord is the history-facing projection of one foreground
// invocation. Exactly one record exists per foreground run; background shells
// are listed separately but their final outcome is still pushed once into the
// conversation transcript.
type ToolCallRecord struct {
	CallID      string         `json:"call_id"`
	CommandText string         `json:"command"`
	Status      ToolCallStatus `json:"status"`
	ResultText  string         `json:"result"`
	PID         int            `json:"pid,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ShellInvocation is the durable record persisted to command history.
type ShellInvocation struct {
	CallID    string         `json:"call_id"`
	Command   string         `json:"command"`
	Status    ToolCallStatus `json:"status"`
	ExitCode  *int           `json:"exit_code,omitempty"`
	WorkDir   string         `json:"workdir"`
	Output    string         `json:"output"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}
