package dlq

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/intake/dispatch"
	"github.com/xraph/intake/event"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
)

// Service manages the dead letter queue.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new DLQ service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// PushFailed creates a DLQ entry from a failed execution. Implements dispatch.DLQPusher.
func (svc *Service) PushFailed(ctx context.Context, x *dispatch.Execution, evt *event.Event, lastError string) error {
	entry := &Entry{
		Entity:       entity.New(),
		ID:           id.NewDLQID(),
		ExecutionID:  x.ID,
		EventID:      x.EventID,
		Provider:     x.Provider,
		Handler:      x.Handler,
		EventType:    evt.Type,
		Payload:      evt.Payload,
		Error:        lastError,
		AttemptCount: x.AttemptCount,
		Priority:     x.Priority,
		Async:        x.Async,
		MaxAttempts:  x.MaxAttempts,
		RetryDelays:  x.RetryDelays,
		FailedAt:     time.Now().UTC(),
	}

	return svc.store.Push(ctx, entry)
}

// List returns DLQ entries matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return svc.store.ListDLQ(ctx, opts)
}

// Get returns a DLQ entry by ID.
func (svc *Service) Get(ctx context.Context, dlqID id.ID) (*Entry, error) {
	return svc.store.GetDLQ(ctx, dlqID)
}

// Replay re-enqueues a single DLQ entry as a fresh execution.
func (svc *Service) Replay(ctx context.Context, dlqID id.ID) error {
	return svc.store.Replay(ctx, dlqID)
}

// ReplayBulk re-enqueues all DLQ entries within a time range.
func (svc *Service) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	return svc.store.ReplayBulk(ctx, from, to)
}

// Purge removes old DLQ entries.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return svc.store.Purge(ctx, before)
}

// Count returns the total number of DLQ entries.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountDLQ(ctx)
}
