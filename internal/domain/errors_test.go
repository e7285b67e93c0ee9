package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Store.Dismiss", ErrShellNotTracked, "pid 4321")
	want := "Store.Dismiss: pid 4321: shell not tracked"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Runner.Handle", ErrEmptyCommand, "")
	want := "Runner.Handle: empty command"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Driver.Execute", ErrSpawnFailed, "/bin/bash")
	if !errors.Is(err, ErrSpawnFailed) {
		t.Error("errors.Is should match ErrSpawnFailed")
	}
}

func TestDomainErrorAs(t *testing.T) {
	err := NewSubSystemError("history", "SQLiteStore.Record", ErrHistoryWrite, "disk full")
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatal("errors.As should match *DomainError")
	}
	if de.Op != "SQLiteStore.Record" {
		t.Errorf("Op = %q, want %q", de.Op, "SQLiteStore.Record")
	}
	if de.SubSystem != "history" {
		t.Errorf("SubSystem = %q, want %q", de.SubSystem, "history")
	}
}

func TestWrapOp(t *testing.T) {
	if WrapOp("anything", nil) != nil {
		t.Error("WrapOp(nil) should be nil")
	}

	base := fmt.Errorf("boom")
	err := WrapOp("Driver.Kill", base)
	assert.EqualError(t, err, "Driver.Kill: boom")
	assert.ErrorIs(t, err, base)
}

func TestWrapOpPreservesSentinel(t *testing.T) {
	err := WrapOp("outer", WrapOp("inner", ErrShellDismissed))
	assert.ErrorIs(t, err, ErrShellDismissed)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(WrapOp("op", ErrShellNotTracked)))
	assert.False(t, IsNotFound(ErrSpawnFailed))
}
