package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/intake/dispatch"
	"github.com/xraph/intake/dlq"
	"github.com/xraph/intake/event"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/registry"
	"github.com/xraph/intake/store/memory"
)

func newEngine(store *memory.Store, reg *registry.Registry) *dispatch.Engine {
	dlqSvc := dlq.NewService(store, nil)
	return dispatch.NewEngine(store, reg, dlqSvc, dispatch.EngineConfig{
		Concurrency:       4,
		PollInterval:      10 * time.Millisecond,
		BatchSize:         10,
		HandlerTimeout:    time.Second,
		DefaultRetryDelay: time.Minute,
		WorkerID:          "worker-test",
	}, nil)
}

func storeEvent(t *testing.T, store *memory.Store, eventType string) *event.Event {
	t.Helper()
	ev := event.New("stripe-main", "ext-"+eventType, eventType, json.RawMessage(`{"ok":true}`), nil)
	stored, wasNew, err := store.FindOrCreateEvent(context.Background(), ev)
	if err != nil || !wasNew {
		t.Fatalf("store event: %v", err)
	}
	return stored
}

func enqueue(t *testing.T, store *memory.Store, ev *event.Event, def registry.Definition) *dispatch.Execution {
	t.Helper()
	x := dispatch.NewExecution(ev, def)
	if err := store.CreateExecutionBatch(context.Background(), []*dispatch.Execution{x}); err != nil {
		t.Fatal(err)
	}
	return x
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEngine_ProcessesExecution(t *testing.T) {
	store := memory.New()
	reg := registry.New()

	var calls atomic.Int32
	reg.RegisterHandler("ledger", registry.HandlerFunc(func(_ context.Context, _ *event.Event, _ json.RawMessage) error {
		calls.Add(1)
		return nil
	}))

	ev := storeEvent(t, store, "charge.succeeded")
	x := enqueue(t, store, ev, registry.Definition{Handler: "ledger", Async: true, MaxAttempts: 3})

	e := newEngine(store, reg)
	e.Start(context.Background())
	defer e.Stop(context.Background())

	waitFor(t, func() bool {
		got, err := store.GetExecution(context.Background(), x.ID)
		return err == nil && got.Status == dispatch.StatusProcessed
	})

	if calls.Load() != 1 {
		t.Fatalf("handler calls: got %d, want 1", calls.Load())
	}

	got, _ := store.GetExecution(context.Background(), x.ID)
	if got.AttemptCount != 1 {
		t.Fatalf("attempt count: got %d, want 1", got.AttemptCount)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed at should be set")
	}

	evAfter, _ := store.GetEvent(context.Background(), ev.ID)
	if evAfter.Status != event.StatusProcessed {
		t.Fatalf("event status: got %s, want processed", evAfter.Status)
	}
}

func TestEngine_RetryExhaustion(t *testing.T) {
	store := memory.New()
	reg := registry.New()

	var calls atomic.Int32
	reg.RegisterHandler("flaky", registry.HandlerFunc(func(_ context.Context, _ *event.Event, _ json.RawMessage) error {
		calls.Add(1)
		return errors.New("downstream unavailable")
	}))

	ev := storeEvent(t, store, "charge.failed")
	// Zero-second delays keep the test fast; the schedule clamp itself is
	// covered by the retrier tests.
	x := enqueue(t, store, ev, registry.Definition{Handler: "flaky", Async: true, MaxAttempts: 3, RetryDelays: []int{0}})

	e := newEngine(store, reg)
	e.Start(context.Background())
	defer e.Stop(context.Background())

	waitFor(t, func() bool {
		got, err := store.GetExecution(context.Background(), x.ID)
		return err == nil && got.Status == dispatch.StatusFailed
	})

	// Give the engine a few more poll cycles to prove no fourth attempt runs.
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != 3 {
		t.Fatalf("handler calls: got %d, want 3", calls.Load())
	}

	got, _ := store.GetExecution(context.Background(), x.ID)
	if got.AttemptCount != 3 {
		t.Fatalf("attempt count: got %d, want 3", got.AttemptCount)
	}
	if got.LastError == "" {
		t.Fatal("last error should be recorded")
	}

	evAfter, _ := store.GetEvent(context.Background(), ev.ID)
	if evAfter.Status != event.StatusFailed {
		t.Fatalf("event status: got %s, want failed", evAfter.Status)
	}

	entries, err := store.ListDLQ(context.Background(), dlq.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 DLQ entry, got %d", len(entries))
	}
	if entries[0].ExecutionID != x.ID || entries[0].Handler != "flaky" {
		t.Fatalf("DLQ entry mismatch: %+v", entries[0])
	}
}

func TestEngine_PermanentError(t *testing.T) {
	store := memory.New()
	reg := registry.New()

	var calls atomic.Int32
	reg.RegisterHandler("strict", registry.HandlerFunc(func(_ context.Context, _ *event.Event, _ json.RawMessage) error {
		calls.Add(1)
		return dispatch.Permanent(errors.New("payload shape not supported"))
	}))

	ev := storeEvent(t, store, "charge.disputed")
	x := enqueue(t, store, ev, registry.Definition{Handler: "strict", Async: true, MaxAttempts: 5, RetryDelays: []int{0}})

	e := newEngine(store, reg)
	e.Start(context.Background())
	defer e.Stop(context.Background())

	waitFor(t, func() bool {
		got, err := store.GetExecution(context.Background(), x.ID)
		return err == nil && got.Status == dispatch.StatusFailed
	})

	if calls.Load() != 1 {
		t.Fatalf("permanent failure should not retry: got %d calls", calls.Load())
	}
}

func TestEngine_UnknownHandlerEventuallyFails(t *testing.T) {
	store := memory.New()
	reg := registry.New()

	ev := storeEvent(t, store, "charge.updated")
	x := enqueue(t, store, ev, registry.Definition{Handler: "ghost", Async: true, MaxAttempts: 2, RetryDelays: []int{0}})

	e := newEngine(store, reg)
	e.Start(context.Background())
	defer e.Stop(context.Background())

	waitFor(t, func() bool {
		got, err := store.GetExecution(context.Background(), x.ID)
		return err == nil && got.Status == dispatch.StatusFailed
	})

	got, _ := store.GetExecution(context.Background(), x.ID)
	if got.AttemptCount != 2 {
		t.Fatalf("unknown handler should burn attempts like any failure, got %d", got.AttemptCount)
	}
}

func TestEngine_HandlerTimeout(t *testing.T) {
	store := memory.New()
	reg := registry.New()

	reg.RegisterHandler("slow", registry.HandlerFunc(func(ctx context.Context, _ *event.Event, _ json.RawMessage) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}))

	ev := storeEvent(t, store, "charge.pending")
	x := enqueue(t, store, ev, registry.Definition{Handler: "slow", Async: true, MaxAttempts: 1})

	dlqSvc := dlq.NewService(store, nil)
	e := dispatch.NewEngine(store, reg, dlqSvc, dispatch.EngineConfig{
		Concurrency:       1,
		PollInterval:      10 * time.Millisecond,
		BatchSize:         10,
		HandlerTimeout:    50 * time.Millisecond,
		DefaultRetryDelay: time.Minute,
		WorkerID:          "worker-test",
	}, nil)
	e.Start(context.Background())
	defer e.Stop(context.Background())

	waitFor(t, func() bool {
		got, err := store.GetExecution(context.Background(), x.ID)
		return err == nil && got.Status == dispatch.StatusFailed
	})
}

// eventReadFailStore injects event read failures between claim and run.
type eventReadFailStore struct {
	*memory.Store
	fail atomic.Bool
}

func (s *eventReadFailStore) GetEvent(ctx context.Context, eventID id.ID) (*event.Event, error) {
	if s.fail.Load() {
		return nil, errors.New("read timeout")
	}
	return s.Store.GetEvent(ctx, eventID)
}

func TestEngine_ReleasesClaimWhenEventReadFails(t *testing.T) {
	mem := memory.New()
	st := &eventReadFailStore{Store: mem}
	st.fail.Store(true)

	reg := registry.New()
	var calls atomic.Int32
	reg.RegisterHandler("ledger", registry.HandlerFunc(func(_ context.Context, _ *event.Event, _ json.RawMessage) error {
		calls.Add(1)
		return nil
	}))

	ev := storeEvent(t, mem, "charge.succeeded")
	x := enqueue(t, mem, ev, registry.Definition{Handler: "ledger", Async: true, MaxAttempts: 3})

	dlqSvc := dlq.NewService(mem, nil)
	e := dispatch.NewEngine(st, reg, dlqSvc, dispatch.EngineConfig{
		Concurrency:       1,
		PollInterval:      10 * time.Millisecond,
		BatchSize:         10,
		HandlerTimeout:    time.Second,
		DefaultRetryDelay: time.Minute,
		WorkerID:          "worker-test",
	}, nil)
	e.Start(context.Background())
	defer e.Stop(context.Background())

	// The failed read must return the claim to pending with the lock
	// released, not strand the row in processing. The claim and release
	// each bump the version past the enqueued row's.
	waitFor(t, func() bool {
		got, err := mem.GetExecution(context.Background(), x.ID)
		return err == nil &&
			got.Status == dispatch.StatusPending &&
			got.LockedBy == "" &&
			got.Version > x.Version+1
	})
	if calls.Load() != 0 {
		t.Fatalf("handler must not run without the event, ran %d times", calls.Load())
	}

	// Once reads recover the execution proceeds normally.
	st.fail.Store(false)
	waitFor(t, func() bool {
		got, err := mem.GetExecution(context.Background(), x.ID)
		return err == nil && got.Status == dispatch.StatusProcessed
	})
	if calls.Load() != 1 {
		t.Fatalf("handler calls after recovery: got %d, want 1", calls.Load())
	}
}

func TestExecuteInline(t *testing.T) {
	store := memory.New()
	reg := registry.New()

	var calls atomic.Int32
	reg.RegisterHandler("receipt", registry.HandlerFunc(func(_ context.Context, _ *event.Event, _ json.RawMessage) error {
		calls.Add(1)
		return nil
	}))

	ev := storeEvent(t, store, "invoice.paid")
	x := enqueue(t, store, ev, registry.Definition{Handler: "receipt", MaxAttempts: 1})

	e := newEngine(store, reg)
	done := e.ExecuteInline(context.Background(), x, ev)

	if calls.Load() != 1 {
		t.Fatalf("handler calls: got %d, want 1", calls.Load())
	}

	// The returned execution carries the outcome; callers must not have to
	// re-read the store to learn what happened.
	if done.Status != dispatch.StatusProcessed {
		t.Fatalf("returned status: got %s", done.Status)
	}
	if done.AttemptCount != 1 {
		t.Fatalf("returned attempt count: got %d, want 1", done.AttemptCount)
	}
	if done.CompletedAt == nil {
		t.Fatal("returned execution should be completed")
	}

	got, _ := store.GetExecution(context.Background(), x.ID)
	if got.Status != dispatch.StatusProcessed {
		t.Fatalf("status: got %s", got.Status)
	}
	evAfter, _ := store.GetEvent(context.Background(), ev.ID)
	if evAfter.Status != event.StatusProcessed {
		t.Fatalf("event status: got %s", evAfter.Status)
	}
}
