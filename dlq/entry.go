// Package dlq implements the dead letter queue for permanently failed
// executions.
package dlq

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
)

// ErrNotFound is returned when a DLQ entry cannot be found.
var ErrNotFound = errors.New("intake: dlq entry not found")

// ErrAlreadyReplayed is returned when replaying an entry that has already
// been replayed. Replaying twice would double-deliver to the handler.
var ErrAlreadyReplayed = errors.New("intake: dlq entry already replayed")

// Entry represents a permanently failed execution in the dead letter queue.
// It carries enough of the execution's routing policy to rebuild a fresh
// execution on replay.
type Entry struct {
	entity.Entity

	// ID is the unique TypeID for this DLQ entry.
	ID id.ID `json:"id"`

	// ExecutionID references the failed execution.
	ExecutionID id.ID `json:"execution_id"`

	// EventID references the original event.
	EventID id.ID `json:"event_id"`

	// Provider names the provider config the event arrived through.
	Provider string `json:"provider"`

	// Handler is the handler reference that failed.
	Handler string `json:"handler"`

	// EventType is the event type name for filtering.
	EventType string `json:"event_type"`

	// Payload is the event body that failed to process.
	Payload json.RawMessage `json:"payload"`

	// Error is the error message from the final attempt.
	Error string `json:"error"`

	// AttemptCount is the total number of attempts made.
	AttemptCount int `json:"attempt_count"`

	// Priority, Async, MaxAttempts and RetryDelays snapshot the routing
	// policy the execution ran under.
	Priority    int   `json:"priority"`
	Async       bool  `json:"async"`
	MaxAttempts int   `json:"max_attempts"`
	RetryDelays []int `json:"retry_delays,omitempty"`

	// ReplayedAt is set when the entry has been replayed.
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`

	// FailedAt is when the execution permanently failed.
	FailedAt time.Time `json:"failed_at"`
}

// ListOpts configures filtering and pagination for DLQ listing.
type ListOpts struct {
	Offset   int
	Limit    int
	Provider string
	Handler  string
	From     *time.Time
	To       *time.Time
}
