package shellexec

import (
	"bytes"
	"testing"
)

func TestRingBufferBasicWrite(t *testing.T) {
	rb := newRingBuffer(64)
	rb.Write([]byte("hello "))
	rb.Write([]byte("world"))

	if got := string(rb.Bytes()); got != "hello world" {
		t.Errorf("Bytes() = %q", got)
	}
	if rb.TotalWritten() != 11 {
		t.Errorf("TotalWritten() = %d, want 11", rb.TotalWritten())
	}
}

func TestRingBufferDropsOldest(t *testing.T) {
	rb := newRingBuffer(8)
	rb.Write([]byte("0123456789")) // 10 bytes into an 8-byte cap

	if got := string(rb.Bytes()); got != "23456789" {
		t.Errorf("Bytes() = %q, want trailing 8 bytes", got)
	}
	if rb.TotalWritten() != 10 {
		t.Errorf("TotalWritten() = %d, want 10 (includes dropped)", rb.TotalWritten())
	}
}

func TestRingBufferBytesIsCopy(t *testing.T) {
	rb := newRingBuffer(16)
	rb.Write([]byte("abc"))

	b := rb.Bytes()
	b[0] = 'X'
	if !bytes.Equal(rb.Bytes(), []byte("abc")) {
		t.Error("Bytes() must return a copy")
	}
}
