package domain

import (
	"context"
	"time"
)

// Role constants for message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single entry in the conversation transcript.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation holds an ordered sequence of messages.
type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InboundMessage is user input arriving from the interactive surface.
type InboundMessage struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// OutboundMessage is an agent response going back to the surface.
type OutboundMessage struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

// MessageHandler processes one inbound message. The LLM client behind it is
// an external collaborator; this codebase only depends on the seam.
type MessageHandler func(ctx context.Context, msg InboundMessage) (OutboundMessage, error)
