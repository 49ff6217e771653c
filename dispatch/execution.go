// Package dispatch fans admitted events out into per-handler executions
// and drives them to completion.
package dispatch

import (
	"time"

	"github.com/xraph/intake/event"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
	"github.com/xraph/intake/registry"
)

// Status represents the current state of an execution.
type Status string

const (
	// StatusPending indicates the execution is awaiting an attempt.
	StatusPending Status = "pending"

	// StatusProcessing indicates a worker has claimed the execution.
	StatusProcessing Status = "processing"

	// StatusProcessed indicates the handler completed successfully.
	StatusProcessed Status = "processed"

	// StatusFailed indicates the execution permanently failed and was moved to the DLQ.
	StatusFailed Status = "failed"
)

// Execution is one handler's run against one event. Concurrent updates are
// guarded by the Version field: every write must carry the version it read,
// and the store rejects the write when the row has moved on.
type Execution struct {
	entity.Entity

	// ID is the unique TypeID for this execution.
	ID id.ID `json:"id"`

	// EventID references the event being processed.
	EventID id.ID `json:"event_id"`

	// Provider names the provider config the event arrived through.
	Provider string `json:"provider"`

	// Handler is the handler reference this execution runs.
	Handler string `json:"handler"`

	// Priority orders executions of the same event; lower runs first.
	Priority int `json:"priority"`

	// Async is true when the execution runs on the worker pool rather than
	// inline during admission.
	Async bool `json:"async"`

	// Status is the current execution state.
	Status Status `json:"status"`

	// AttemptCount is the number of attempts made so far.
	AttemptCount int `json:"attempt_count"`

	// MaxAttempts is the maximum number of attempts before moving to DLQ.
	MaxAttempts int `json:"max_attempts"`

	// RetryDelays is the per-attempt backoff in seconds.
	RetryDelays []int `json:"retry_delays,omitempty"`

	// Version increments on every write. Claims and updates carry the
	// version they read.
	Version int64 `json:"version"`

	// NextAttemptAt is when the next attempt should occur.
	NextAttemptAt time.Time `json:"next_attempt_at"`

	// LastAttemptAt is when the most recent attempt started.
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`

	// LastError is the error message from the most recent failed attempt.
	LastError string `json:"last_error,omitempty"`

	// LockedBy identifies the worker holding the claim, if any.
	LockedBy string `json:"locked_by,omitempty"`

	// LockedAt is when the claim was taken.
	LockedAt *time.Time `json:"locked_at,omitempty"`

	// CompletedAt is when the execution finished (processed or failed).
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewExecution builds a pending execution for ev under the routing
// definition def.
func NewExecution(ev *event.Event, def registry.Definition) *Execution {
	return &Execution{
		Entity:        entity.New(),
		ID:            id.NewExecutionID(),
		EventID:       ev.ID,
		Provider:      ev.Provider,
		Handler:       def.Handler,
		Priority:      def.Priority,
		Async:         def.Async,
		Status:        StatusPending,
		MaxAttempts:   def.MaxAttempts,
		RetryDelays:   def.RetryDelays,
		Version:       1,
		NextAttemptAt: time.Now().UTC(),
	}
}

// EffectiveMaxAttempts normalizes MaxAttempts; zero means a single attempt.
func (x *Execution) EffectiveMaxAttempts() int {
	if x.MaxAttempts <= 0 {
		return 1
	}
	return x.MaxAttempts
}

// ListOpts configures filtering and pagination for execution listing.
type ListOpts struct {
	Offset int
	Limit  int
	Status *Status
}

// AggregateStatus derives an event's status from the full set of its
// executions. A failed execution dominates; the event is processing only
// while a worker actually holds an execution; pending rows awaiting an
// attempt (or a retry window) leave the event received. With no executions
// at all the event stays received.
func AggregateStatus(execs []*Execution) event.Status {
	if len(execs) == 0 {
		return event.StatusReceived
	}
	var processing, pending bool
	for _, x := range execs {
		switch x.Status {
		case StatusFailed:
			return event.StatusFailed
		case StatusProcessing:
			processing = true
		case StatusPending:
			pending = true
		}
	}
	switch {
	case processing:
		return event.StatusProcessing
	case pending:
		return event.StatusReceived
	}
	return event.StatusProcessed
}
