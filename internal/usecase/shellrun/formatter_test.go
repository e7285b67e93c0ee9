package shellrun

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"quill/internal/domain"
)

func intp(v int) *int { return &v }

func TestFormatResultSuccess(t *testing.T) {
	status, text := FormatResult(domain.ExecutionResult{
		Output:   "hello\n",
		ExitCode: intp(0),
	}, "/work", "")

	assert.Equal(t, domain.ToolCallSuccess, status)
	assert.Equal(t, "hello", text)
}

func TestFormatResultEmptyOutput(t *testing.T) {
	status, text := FormatResult(domain.ExecutionResult{ExitCode: intp(0)}, "/work", "")

	assert.Equal(t, domain.ToolCallSuccess, status)
	assert.Equal(t, "(Command produced no output)", text)
}

func TestFormatResultNonZeroExit(t *testing.T) {
	status, text := FormatResult(domain.ExecutionResult{
		Output:   "oops\n",
		ExitCode: intp(2),
	}, "/work", "")

	assert.Equal(t, domain.ToolCallError, status)
	assert.Equal(t, "Command exited with code 2.\noops", text)
}

func TestFormatResultSignal(t *testing.T) {
	status, text := FormatResult(domain.ExecutionResult{
		Output: "partial",
		Signal: "terminated",
	}, "/work", "")

	assert.Equal(t, domain.ToolCallError, status)
	assert.Equal(t, "Command terminated by signal: terminated.\npartial", text)
}

func TestFormatResultAborted(t *testing.T) {
	status, text := FormatResult(domain.ExecutionResult{
		Output:  "some output",
		Aborted: true,
	}, "/work", "")

	assert.Equal(t, domain.ToolCallCancelled, status)
	assert.Equal(t, "Command was cancelled.\nsome output", text)
}

func TestFormatResultAbortWinsOverSignal(t *testing.T) {
	status, _ := FormatResult(domain.ExecutionResult{
		Aborted: true,
		Signal:  "terminated",
	}, "/work", "")

	assert.Equal(t, domain.ToolCallCancelled, status)
}

func TestFormatResultError(t *testing.T) {
	status, text := FormatResult(domain.ExecutionResult{
		Err: errors.New("spawn: no such file or directory"),
	}, "/work", "")

	assert.Equal(t, domain.ToolCallError, status)
	assert.True(t, strings.HasPrefix(text, "spawn: no such file or directory"))
}

func TestFormatResultBackgrounded(t *testing.T) {
	status, text := FormatResult(domain.ExecutionResult{
		PID:          1234,
		Backgrounded: true,
		Output:       "foreground so far",
	}, "/work", "")

	assert.Equal(t, domain.ToolCallSuccess, status)
	assert.Equal(t, "Command moved to background (PID: 1234). Output hidden.", text)
}

func TestFormatResultBinary(t *testing.T) {
	status, text := FormatResult(domain.ExecutionResult{
		IsBinary:    true,
		BinaryBytes: 1 << 20,
		Output:      "",
		ExitCode:    intp(0),
	}, "/work", "")

	assert.Equal(t, domain.ToolCallSuccess, status)
	assert.Equal(t, "[Command produced binary output, which is not shown.]", text)
}

func TestFormatResultCwdWarning(t *testing.T) {
	_, text := FormatResult(domain.ExecutionResult{
		Output:   "done",
		ExitCode: intp(0),
	}, "/work", "/work/sub")

	assert.Contains(t, text, "cd into /work/sub")
	assert.Contains(t, text, "every command starts from /work")
	assert.True(t, strings.HasSuffix(text, "done"), "warning must precede output")
}

func TestTruncateForTranscript(t *testing.T) {
	assert.Equal(t, "short", TruncateForTranscript("short", 100))

	long := strings.Repeat("x", 50)
	got := TruncateForTranscript(long, 10)
	assert.Equal(t, strings.Repeat("x", 10)+"... (truncated)", got)
}

func TestTruncateForTranscriptRuneBoundary(t *testing.T) {
	// "héllo" is 6 bytes per repeat; byte 8 lands in the middle of the
	// second é, so the cut must back off to byte 7.
	long := strings.Repeat("héllo", 10)
	got := TruncateForTranscript(long, 8)

	prefix := strings.TrimSuffix(got, "... (truncated)")
	assert.True(t, utf8.ValidString(prefix), "truncated prefix must stay valid UTF-8: %q", prefix)
	assert.Equal(t, "hélloh", prefix)
}

func TestTruncateForTranscriptDefaultMax(t *testing.T) {
	long := strings.Repeat("y", DefaultTranscriptMaxLen+5)
	got := TruncateForTranscript(long, 0)
	assert.Len(t, got, DefaultTranscriptMaxLen+len("... (truncated)"))
}

func TestConversationEntry(t *testing.T) {
	got := ConversationEntry("ls -la", "total 0")

	assert.Contains(t, got, "I ran the following shell command:")
	assert.Contains(t, got, "```sh\nls -la\n```")
	assert.Contains(t, got, "```\ntotal 0\n```")
}
