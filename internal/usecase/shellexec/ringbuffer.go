package shellexec

import (
	"sync"
)

// ringBuffer is a thread-safe, bounded byte buffer that drops the oldest
// data when capacity is exceeded. Used for raw output capture so a runaway
// process cannot grow memory without bound.
type ringBuffer struct {
	mu      sync.Mutex
	data    []byte
	max     int
	written int64 // total bytes ever written (including dropped)
}

func newRingBuffer(maxBytes int) *ringBuffer {
	return &ringBuffer{
		data: make([]byte, 0, min(maxBytes, 4096)),
		max:  maxBytes,
	}
}

// Write implements io.Writer. Thread-safe.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.data = append(rb.data, p...)
	rb.written += int64(len(p))
	if len(rb.data) > rb.max {
		rb.data = rb.data[len(rb.data)-rb.max:]
	}
	return len(p), nil
}

// Bytes returns a copy of the buffered content.
func (rb *ringBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	cp := make([]byte, len(rb.data))
	copy(cp, rb.data)
	return cp
}

// TotalWritten returns the total number of bytes ever written, including
// bytes dropped due to overflow. Drives binary-progress reporting.
func (rb *ringBuffer) TotalWritten() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.written
}
