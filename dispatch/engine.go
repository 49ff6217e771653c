package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/intake/event"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/observability"
	"github.com/xraph/intake/registry"
)

// EngineStore is the interface the engine needs for execution operations.
type EngineStore interface {
	DequeueExecutions(ctx context.Context, limit int) ([]*Execution, error)
	ClaimExecution(ctx context.Context, execID id.ID, version int64, workerID string) (*Execution, error)
	UpdateExecution(ctx context.Context, x *Execution) error
	ListExecutionsByEvent(ctx context.Context, eventID id.ID) ([]*Execution, error)
	GetEvent(ctx context.Context, eventID id.ID) (*event.Event, error)
	UpdateEventStatus(ctx context.Context, eventID id.ID, status event.Status) error
}

// DLQPusher pushes permanently failed executions to the dead letter queue.
type DLQPusher interface {
	PushFailed(ctx context.Context, x *Execution, evt *event.Event, lastError string) error
}

// HandlerResolver resolves handler references to implementations.
type HandlerResolver interface {
	ResolveHandler(ref string) (registry.Handler, error)
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	Concurrency       int
	PollInterval      time.Duration
	BatchSize         int
	HandlerTimeout    time.Duration
	DefaultRetryDelay time.Duration
	WorkerID          string
	Metrics           *observability.Metrics
	Tracer            *observability.Tracer
}

// Engine is the worker pool that dequeues due async executions and runs
// their handlers.
type Engine struct {
	store    EngineStore
	resolver HandlerResolver
	retrier  *Retrier
	dlq      DLQPusher
	config   EngineConfig
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an execution engine.
func NewEngine(store EngineStore, resolver HandlerResolver, dlq DLQPusher, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		resolver: resolver,
		retrier:  NewRetrier(cfg.DefaultRetryDelay),
		dlq:      dlq,
		config:   cfg,
		logger:   logger,
	}
}

// Start begins the execution workers and poll loop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight executions to complete,
// or for ctx to expire, whichever comes first.
func (e *Engine) Stop(ctx context.Context) {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.logger.WarnContext(ctx, "shutdown timed out with executions in flight")
	}
}

// pollLoop periodically dequeues due executions and dispatches them to workers.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, e.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := e.store.DequeueExecutions(ctx, e.config.BatchSize)
			if err != nil {
				e.logger.ErrorContext(ctx, "dequeue failed", "error", err)
				continue
			}

			for _, x := range batch {
				select {
				case <-ctx.Done():
					return
				case sem <- struct{}{}:
				}

				e.wg.Add(1)
				go func(ex *Execution) {
					defer e.wg.Done()
					defer func() { <-sem }()
					e.process(ctx, ex)
				}(x)
			}
		}
	}
}

// process handles a single dequeued execution: claim, run, decide, update.
func (e *Engine) process(ctx context.Context, x *Execution) {
	claimed, err := e.store.ClaimExecution(ctx, x.ID, x.Version, e.config.WorkerID)
	if err != nil {
		// Another worker won the claim; the execution is theirs now.
		if errors.Is(err, ErrStaleVersion) {
			e.logger.DebugContext(ctx, "claim lost",
				"execution_id", x.ID, "version", x.Version)
			return
		}
		e.logger.ErrorContext(ctx, "claim failed",
			"execution_id", x.ID, "error", err)
		return
	}

	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartExecutionSpan(ctx, claimed.ID.String(), claimed.EventID.String(), claimed.Handler)
	}

	evt, err := e.store.GetEvent(ctx, claimed.EventID)
	if err != nil {
		e.logger.ErrorContext(ctx, "get event failed",
			"execution_id", claimed.ID, "event_id", claimed.EventID, "error", err)
		e.releaseClaim(ctx, claimed)
		if span != nil {
			e.config.Tracer.EndExecutionSpan(span, claimed.AttemptCount, err.Error())
		}
		return
	}

	e.runAttempt(ctx, claimed, evt)

	if span != nil {
		e.config.Tracer.EndExecutionSpan(span, claimed.AttemptCount, claimed.LastError)
	}
}

// runAttempt performs one handler attempt on a claimed execution, records
// the outcome, and refreshes the event's aggregate status.
func (e *Engine) runAttempt(ctx context.Context, x *Execution, evt *event.Event) {
	started := time.Now().UTC()
	x.AttemptCount++
	x.LastAttemptAt = &started

	attemptErr := e.invoke(ctx, x, evt)

	latencySeconds := time.Since(started).Seconds()

	if attemptErr != nil {
		x.LastError = attemptErr.Error()
	} else {
		x.LastError = ""
	}

	decision := e.retrier.Decide(attemptErr, x)

	switch decision {
	case Processed:
		now := time.Now().UTC()
		x.Status = StatusProcessed
		x.CompletedAt = &now
		x.LockedBy = ""
		x.LockedAt = nil
		if e.config.Metrics != nil {
			e.config.Metrics.RecordExecution("processed", latencySeconds)
			e.config.Metrics.PendingExecutions.Dec()
		}
		e.logger.DebugContext(ctx, "execution processed",
			"execution_id", x.ID, "handler", x.Handler, "attempt", x.AttemptCount)

	case Retry:
		x.Status = StatusPending
		x.NextAttemptAt = e.retrier.ComputeNextAttempt(x.AttemptCount, x.RetryDelays)
		x.LockedBy = ""
		x.LockedAt = nil
		if e.config.Metrics != nil {
			e.config.Metrics.RecordExecution("retried", latencySeconds)
		}
		e.logger.DebugContext(ctx, "retry scheduled",
			"execution_id", x.ID, "attempt", x.AttemptCount, "next_at", x.NextAttemptAt)

	case Failed:
		now := time.Now().UTC()
		x.Status = StatusFailed
		x.CompletedAt = &now
		x.LockedBy = ""
		x.LockedAt = nil
		if e.dlq != nil {
			if dlqErr := e.dlq.PushFailed(ctx, x, evt, x.LastError); dlqErr != nil {
				e.logger.ErrorContext(ctx, "push to DLQ failed",
					"execution_id", x.ID, "error", dlqErr)
			}
		}
		if e.config.Metrics != nil {
			e.config.Metrics.RecordExecution("failed", latencySeconds)
			e.config.Metrics.PendingExecutions.Dec()
			e.config.Metrics.DLQSize.Inc()
		}
		e.logger.WarnContext(ctx, "execution failed permanently",
			"execution_id", x.ID, "handler", x.Handler, "error", x.LastError)
	}

	if updateErr := e.store.UpdateExecution(ctx, x); updateErr != nil {
		e.logger.ErrorContext(ctx, "update execution failed",
			"execution_id", x.ID, "error", updateErr)
		return
	}

	e.refreshEventStatus(ctx, evt.ID)
}

// invoke resolves and runs the handler under the per-attempt timeout.
func (e *Engine) invoke(ctx context.Context, x *Execution, evt *event.Event) error {
	// An unknown handler ref counts as a failed attempt like any other, so
	// operators see it retried and eventually land in the DLQ rather than
	// vanish silently.
	h, err := e.resolver.ResolveHandler(x.Handler)
	if err != nil {
		return fmt.Errorf("resolve handler %q: %w", x.Handler, err)
	}

	if e.config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.HandlerTimeout)
		defer cancel()
	}

	return h.Handle(ctx, evt, evt.Payload)
}

// ExecuteInline runs a sync execution immediately during admission and
// returns it with the attempt's outcome recorded, so callers see the final
// status and attempt count rather than the pending row they enqueued. The
// execution must already be persisted; its outcome is recorded the same way
// the worker records async outcomes.
func (e *Engine) ExecuteInline(ctx context.Context, x *Execution, evt *event.Event) *Execution {
	claimed, err := e.store.ClaimExecution(ctx, x.ID, x.Version, e.config.WorkerID)
	if err != nil {
		if errors.Is(err, ErrStaleVersion) {
			return x
		}
		e.logger.ErrorContext(ctx, "claim failed",
			"execution_id", x.ID, "error", err)
		return x
	}
	e.runAttempt(ctx, claimed, evt)
	return claimed
}

// releaseClaim returns a claimed execution to the pending queue without
// burning an attempt, so a transient read failure between claim and run
// does not strand the row in processing with the lock held.
func (e *Engine) releaseClaim(ctx context.Context, x *Execution) {
	x.Status = StatusPending
	x.LockedBy = ""
	x.LockedAt = nil
	if err := e.store.UpdateExecution(ctx, x); err != nil {
		e.logger.ErrorContext(ctx, "release claim failed",
			"execution_id", x.ID, "error", err)
	}
}

// refreshEventStatus recomputes the event's aggregate status from the full
// execution set.
func (e *Engine) refreshEventStatus(ctx context.Context, eventID id.ID) {
	execs, err := e.store.ListExecutionsByEvent(ctx, eventID)
	if err != nil {
		e.logger.ErrorContext(ctx, "list executions failed",
			"event_id", eventID, "error", err)
		return
	}
	if err := e.store.UpdateEventStatus(ctx, eventID, AggregateStatus(execs)); err != nil {
		e.logger.ErrorContext(ctx, "update event status failed",
			"event_id", eventID, "error", err)
	}
}
