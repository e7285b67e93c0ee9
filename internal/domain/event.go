package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventMessageReceived EventType = "message.received"
	EventMessageSent     EventType = "message.sent"

	// Shell lifecycle events.
	EventShellStarted      EventType = "shell.started"
	EventShellExited       EventType = "shell.exited"
	EventShellBackgrounded EventType = "shell.backgrounded"
	EventShellDismissed    EventType = "shell.dismissed"

	EventAgentError EventType = "agent.error"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ShellEventPayload is the payload carried by shell.* events.
type ShellEventPayload struct {
	PID      int    `json:"pid"`
	Command  string `json:"command"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Signal   string `json:"signal,omitempty"`
}

// NewShellEvent builds a shell lifecycle event.
func NewShellEvent(t EventType, payload ShellEventPayload) Event {
	data, _ := json.Marshal(payload)
	return Event{Type: t, Timestamp: time.Now(), Payload: data}
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
