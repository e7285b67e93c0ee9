// Package agent holds the conversation transcript the LLM consumes. The LLM
// client itself is an external collaborator reached through
// domain.MessageHandler; this package only guarantees that the transcript
// reflects exactly what each shell invocation produced.
package agent

import (
	"sync"
	"time"

	"quill/internal/domain"
)

// Transcript is an append-only conversation log.
type Transcript struct {
	mu       sync.Mutex
	messages []domain.Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// AppendUserEntry appends a user-role entry. Shell results land here via the
// fixed format produced by the result formatter.
func (t *Transcript) AppendUserEntry(text string) {
	t.append(domain.RoleUser, text)
}

// AppendAssistantEntry appends an assistant-role entry.
func (t *Transcript) AppendAssistantEntry(text string) {
	t.append(domain.RoleAssistant, text)
}

// Messages returns a copy of the transcript so far.
func (t *Transcript) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]domain.Message, len(t.messages))
	copy(cp, t.messages)
	return cp
}

// Len reports the number of entries.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// Clear empties the transcript.
func (t *Transcript) Clear() {
	t.mu.Lock()
	t.messages = nil
	t.mu.Unlock()
}

func (t *Transcript) append(role, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, domain.Message{
		Role:      role,
		Content:   text,
		Timestamp: time.Now(),
	})
}
