package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/domain"
)

func TestTranscriptAppendAndMessages(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUserEntry("I ran a command")
	tr.AppendAssistantEntry("noted")

	msgs := tr.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "I ran a command", msgs[0].Content)
	assert.False(t, msgs[0].Timestamp.IsZero())
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, 2, tr.Len())
}

func TestTranscriptMessagesIsCopy(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUserEntry("original")

	msgs := tr.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, "original", tr.Messages()[0].Content)
}

func TestTranscriptClear(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUserEntry("one")
	tr.Clear()

	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.Messages())
}
