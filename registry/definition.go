// Package registry maps (provider, event type) pairs onto prioritized
// handler bindings.
package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xraph/intake/event"
)

// Handler processes one event. The payload is the event's verified body;
// returning an error marks the attempt failed and drives the retry policy.
type Handler interface {
	Handle(ctx context.Context, ev *event.Event, payload json.RawMessage) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev *event.Event, payload json.RawMessage) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, ev *event.Event, payload json.RawMessage) error {
	return f(ctx, ev, payload)
}

// Definition binds a handler reference to the events it should receive.
type Definition struct {
	// Provider names the provider config this binding applies to.
	Provider string `json:"provider"`

	// EventType is an exact type or a glob pattern ("payment_intent.*", "*").
	EventType string `json:"event_type"`

	// Handler is the registered handler reference.
	Handler string `json:"handler"`

	// Priority orders handlers for the same event; lower runs first.
	Priority int `json:"priority"`

	// Async routes the execution through the worker instead of running it
	// inline during admission.
	Async bool `json:"async"`

	// MaxAttempts caps delivery attempts for async executions. 0 means one
	// attempt with no retries.
	MaxAttempts int `json:"max_attempts,omitempty"`

	// RetryDelays gives the per-attempt backoff in seconds. When a retry's
	// index runs past the end, the last entry repeats.
	RetryDelays []int `json:"retry_delays,omitempty"`

	// DeletedAt tombstones the binding; tombstoned bindings never match.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// key identifies a binding within a provider's table.
func (d Definition) key() bindingKey {
	return bindingKey{eventType: d.EventType, handler: d.Handler}
}

type bindingKey struct {
	eventType string
	handler   string
}
