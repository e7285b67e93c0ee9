// Package uxerror translates raw errors into user-friendly messages with
// recovery hints for the TUI.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"quill/internal/adapter/tui/theme"
	"quill/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Command Not Found"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text (for debug)
}

// Render formats the FriendlyError for display in the TUI message list.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	// Domain sentinel errors (checked first so errors.Is works through wrapping).
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrSpawnFailed) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Command Failed to Start",
				Message: "The shell process could not be spawned.",
				Hints:   []string{"Check that /bin/bash exists", "Verify the working directory in config"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrShellDismissed) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Shell Already Dismissed",
				Message: "That background shell was already removed from the panel.",
				Hints:   []string{"Toggle the panel (Ctrl+S) to see live shells"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrShellNotTracked) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Unknown Shell",
				Message: "No background shell with that pid is tracked.",
				Hints:   []string{"The process may have been dismissed already"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrHistoryWrite) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "History Write Failed",
				Message: "The command outcome could not be persisted.",
				Hints:   []string{"Check disk space", "Check permissions on the history database path"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: func(err error) bool { return errors.Is(err, domain.ErrConfigLoad) },
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Configuration Error",
				Message: "The configuration file could not be loaded.",
				Hints:   []string{"Check the YAML syntax in ~/.quill/config.yaml", "Remove the file to fall back to defaults"},
				Raw:     err.Error(),
			}
		},
	},

	// Generic patterns (string matching for external errors).
	{
		match:   containsAny("permission denied", "operation not permitted"),
		produce: constantError("Permission Denied", "The operating system rejected the operation.", []string{"Check file and directory permissions", "Avoid running against system paths"}),
	},
	{
		match:   containsAny("deadline exceeded", "timeout", "context deadline"),
		produce: constantError("Request Timed Out", "The operation took too long to complete.", []string{"Try again", "Move long-running commands to the background with Ctrl+B"}),
	},
	{
		match:   containsAny("no such file or directory", "executable file not found"),
		produce: constantError("Not Found", "A file or executable named in the command does not exist.", []string{"Check the spelling of the path", "Verify the program is installed and on PATH"}),
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}

	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}

	// Fallback for unrecognized errors.
	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Check the log file for details"},
		Raw:     err.Error(),
	}
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}
