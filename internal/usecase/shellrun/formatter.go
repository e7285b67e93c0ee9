package shellrun

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"quill/internal/domain"
)

// DefaultTranscriptMaxLen caps the output text sent to the conversation
// transcript. UI-facing text is never truncated this way.
const DefaultTranscriptMaxLen = 16000

const (
	binaryPlaceholder = "[Command produced binary output, which is not shown.]"
	emptyPlaceholder  = "(Command produced no output)"
	truncationMarker  = "... (truncated)"
)

// FormatResult maps a terminal execution result to the fixed (status, text)
// contract consumed by history and the conversation transcript. changedDir
// is non-empty when the working-directory capture shows the command ended in
// a different directory than it started in.
//
// Cause precedence mirrors the single-cause invariant: error, then abort,
// then background transfer, then signal, then non-zero exit.
func FormatResult(res domain.ExecutionResult, startDir, changedDir string) (domain.ToolCallStatus, string) {
	main := mainContent(res)
	if changedDir != "" {
		main = cwdWarning(startDir, changedDir) + "\n" + main
	}

	switch {
	case res.Err != nil:
		return domain.ToolCallError, res.Err.Error() + "\n" + main
	case res.Aborted:
		return domain.ToolCallCancelled, "Command was cancelled.\n" + main
	case res.Backgrounded:
		return domain.ToolCallSuccess, fmt.Sprintf("Command moved to background (PID: %d). Output hidden.", res.PID)
	case res.Signal != "":
		return domain.ToolCallError, fmt.Sprintf("Command terminated by signal: %s.\n%s", res.Signal, main)
	case res.ExitCode != nil && *res.ExitCode != 0:
		return domain.ToolCallError, fmt.Sprintf("Command exited with code %d.\n%s", *res.ExitCode, main)
	default:
		return domain.ToolCallSuccess, main
	}
}

func mainContent(res domain.ExecutionResult) string {
	if res.IsBinary {
		return binaryPlaceholder
	}
	out := strings.TrimSpace(res.Output)
	if out == "" {
		return emptyPlaceholder
	}
	return out
}

func cwdWarning(startDir, finalDir string) string {
	return fmt.Sprintf(
		"WARNING: anything that modifies the shell state (e.g. cd into %s) will not persist; every command starts from %s.",
		finalDir, startDir)
}

// TruncateForTranscript bounds text destined for the conversation log.
func TruncateForTranscript(s string, max int) string {
	if max <= 0 {
		max = DefaultTranscriptMaxLen
	}
	if len(s) <= max {
		return s
	}
	// Back off to a rune boundary so the cut never splits a multibyte
	// character.
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}

// ConversationEntry renders the fixed user-role transcript entry for one
// completed foreground invocation.
func ConversationEntry(rawCommand, finalOutput string) string {
	return fmt.Sprintf(
		"I ran the following shell command:\n```sh\n%s\n```\n\nThis produced the following result:\n```\n%s\n```",
		rawCommand, finalOutput)
}
