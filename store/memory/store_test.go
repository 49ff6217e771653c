package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/intake"
	"github.com/xraph/intake/dispatch"
	"github.com/xraph/intake/dlq"
	"github.com/xraph/intake/event"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
	"github.com/xraph/intake/provider"
)

func ctx() context.Context { return context.Background() }

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	s := New()

	if err := s.Migrate(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); !errors.Is(err, intake.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// provider.Store
// ──────────────────────────────────────────────────

func newProvider(name, token string) *provider.Config {
	return &provider.Config{
		Entity: entity.New(),
		Name:   name,
		Token:  token,
		Secret: "whsec_" + name,
		Scheme: "stripe",
		Active: true,
	}
}

func TestProviderCRUD(t *testing.T) {
	s := New()

	p := newProvider("stripe-main", "tok-1")
	if err := s.CreateProvider(ctx(), p); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetProvider(ctx(), "stripe-main")
	if err != nil {
		t.Fatal(err)
	}
	if got.Token != "tok-1" {
		t.Fatalf("got token %q", got.Token)
	}

	got.Scheme = "github"
	if err := s.UpdateProvider(ctx(), got); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetProvider(ctx(), "stripe-main")
	if got.Scheme != "github" {
		t.Fatalf("update not applied, scheme %q", got.Scheme)
	}

	if err := s.SetProviderActive(ctx(), "stripe-main", false); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetProvider(ctx(), "stripe-main")
	if got.Active {
		t.Fatal("provider should be inactive")
	}

	if _, err := s.GetProvider(ctx(), "ghost"); !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProviderCopyOnRead(t *testing.T) {
	s := New()

	if err := s.CreateProvider(ctx(), newProvider("stripe-main", "tok-1")); err != nil {
		t.Fatal(err)
	}

	// Mutating a returned config must not rewrite the stored one; the
	// gateway may be reading the same provider concurrently.
	first, err := s.GetProvider(ctx(), "stripe-main")
	if err != nil {
		t.Fatal(err)
	}
	first.Secret = "whsec_mutated"
	first.Active = false

	got, err := s.GetProvider(ctx(), "stripe-main")
	if err != nil {
		t.Fatal(err)
	}
	if got.Secret != "whsec_stripe-main" || !got.Active {
		t.Fatalf("caller mutation leaked into the store: %+v", got)
	}

	listed, err := s.ListProviders(ctx(), provider.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	listed[0].Token = "tok-mutated"
	got, _ = s.GetProvider(ctx(), "stripe-main")
	if got.Token != "tok-1" {
		t.Fatalf("list mutation leaked into the store: %q", got.Token)
	}
}

func TestProviderUniqueness(t *testing.T) {
	s := New()

	if err := s.CreateProvider(ctx(), newProvider("stripe-main", "tok-1")); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateProvider(ctx(), newProvider("stripe-main", "tok-2")); !errors.Is(err, provider.ErrExists) {
		t.Fatalf("duplicate name should fail, got %v", err)
	}
	if err := s.CreateProvider(ctx(), newProvider("stripe-alt", "tok-1")); !errors.Is(err, provider.ErrExists) {
		t.Fatalf("duplicate token should fail, got %v", err)
	}
}

func TestProviderListActiveOnly(t *testing.T) {
	s := New()

	active := newProvider("a-active", "tok-a")
	inactive := newProvider("b-inactive", "tok-b")
	inactive.Active = false
	s.CreateProvider(ctx(), active)
	s.CreateProvider(ctx(), inactive)

	all, _ := s.ListProviders(ctx(), provider.ListOpts{})
	if len(all) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(all))
	}

	activeOnly, _ := s.ListProviders(ctx(), provider.ListOpts{ActiveOnly: true})
	if len(activeOnly) != 1 || activeOnly[0].Name != "a-active" {
		t.Fatalf("active filter wrong: %v", activeOnly)
	}
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

func TestFindOrCreateEvent(t *testing.T) {
	s := New()

	ev := event.New("stripe-main", "evt_1", "charge.succeeded", json.RawMessage(`{"amount":100}`), nil)
	stored, wasNew, err := s.FindOrCreateEvent(ctx(), ev)
	if err != nil {
		t.Fatal(err)
	}
	if !wasNew {
		t.Fatal("first insert should be new")
	}
	if stored.DedupState != event.DedupUnique {
		t.Fatalf("dedup state: got %s", stored.DedupState)
	}

	// Redelivery with a different payload collapses onto the original row
	// without overwriting it.
	dup := event.New("stripe-main", "evt_1", "charge.succeeded", json.RawMessage(`{"amount":999}`), nil)
	existing, wasNew, err := s.FindOrCreateEvent(ctx(), dup)
	if err != nil {
		t.Fatal(err)
	}
	if wasNew {
		t.Fatal("redelivery should not be new")
	}
	if existing.ID != stored.ID {
		t.Fatal("redelivery should return the original row")
	}
	if existing.DedupState != event.DedupDuplicate {
		t.Fatalf("dedup state: got %s", existing.DedupState)
	}
	if string(existing.Payload) != `{"amount":100}` {
		t.Fatalf("original payload overwritten: %s", existing.Payload)
	}
}

func TestFindOrCreateEvent_Concurrent(t *testing.T) {
	s := New()

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	newCount := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev := event.New("stripe-main", "evt_race", "charge.succeeded", json.RawMessage(`{}`), nil)
			_, wasNew, err := s.FindOrCreateEvent(ctx(), ev)
			if err != nil {
				t.Error(err)
				return
			}
			if wasNew {
				mu.Lock()
				newCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if newCount != 1 {
		t.Fatalf("exactly one caller should observe wasNew, got %d", newCount)
	}

	events, _ := s.ListEvents(ctx(), event.ListOpts{Provider: "stripe-main"})
	if len(events) != 1 {
		t.Fatalf("exactly one row should exist, got %d", len(events))
	}
}

func TestEventStatusAndListFilters(t *testing.T) {
	s := New()

	a := event.New("stripe-main", "evt_a", "charge.succeeded", json.RawMessage(`{}`), nil)
	b := event.New("github-ci", "evt_b", "push", json.RawMessage(`{}`), nil)
	s.FindOrCreateEvent(ctx(), a)
	s.FindOrCreateEvent(ctx(), b)

	if err := s.UpdateEventStatus(ctx(), a.ID, event.StatusProcessed); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetEvent(ctx(), a.ID)
	if got.Status != event.StatusProcessed {
		t.Fatalf("status: got %s", got.Status)
	}

	byProvider, _ := s.ListEvents(ctx(), event.ListOpts{Provider: "github-ci"})
	if len(byProvider) != 1 || byProvider[0].ExternalID != "evt_b" {
		t.Fatalf("provider filter wrong: %v", byProvider)
	}

	byStatus, _ := s.ListEvents(ctx(), event.ListOpts{Status: event.StatusProcessed})
	if len(byStatus) != 1 || byStatus[0].ExternalID != "evt_a" {
		t.Fatalf("status filter wrong: %v", byStatus)
	}

	if _, err := s.GetEvent(ctx(), id.NewEventID()); !errors.Is(err, event.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// dispatch.Store
// ──────────────────────────────────────────────────

func pendingExecution(eventID id.ID) *dispatch.Execution {
	return &dispatch.Execution{
		Entity:        entity.New(),
		ID:            id.NewExecutionID(),
		EventID:       eventID,
		Provider:      "stripe-main",
		Handler:       "ledger",
		Status:        dispatch.StatusPending,
		MaxAttempts:   3,
		Version:       1,
		NextAttemptAt: time.Now().UTC(),
	}
}

func TestExecutionBatchAndDequeue(t *testing.T) {
	s := New()
	eventID := id.NewEventID()

	batch := []*dispatch.Execution{pendingExecution(eventID), pendingExecution(eventID)}
	if err := s.CreateExecutionBatch(ctx(), batch); err != nil {
		t.Fatal(err)
	}

	due, err := s.DequeueExecutions(ctx(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due executions, got %d", len(due))
	}

	// Dequeued rows are invisible until released by an update.
	again, _ := s.DequeueExecutions(ctx(), 10)
	if len(again) != 0 {
		t.Fatalf("dequeued rows should be locked, got %d", len(again))
	}
}

func TestDequeueRespectsNextAttemptAt(t *testing.T) {
	s := New()

	future := pendingExecution(id.NewEventID())
	future.NextAttemptAt = time.Now().Add(time.Hour)
	s.CreateExecutionBatch(ctx(), []*dispatch.Execution{future})

	due, _ := s.DequeueExecutions(ctx(), 10)
	if len(due) != 0 {
		t.Fatalf("future execution should not be dequeued, got %d", len(due))
	}
}

func TestClaimExclusivity(t *testing.T) {
	s := New()

	x := pendingExecution(id.NewEventID())
	s.CreateExecutionBatch(ctx(), []*dispatch.Execution{x})

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	claims := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ClaimExecution(ctx(), x.ID, 1, "worker")
			if err == nil {
				mu.Lock()
				claims++
				mu.Unlock()
				return
			}
			if !errors.Is(err, dispatch.ErrStaleVersion) {
				t.Errorf("loser should see ErrStaleVersion, got %v", err)
			}
		}()
	}
	wg.Wait()

	if claims != 1 {
		t.Fatalf("exactly one worker should win the claim, got %d", claims)
	}

	got, _ := s.GetExecution(ctx(), x.ID)
	if got.Status != dispatch.StatusProcessing {
		t.Fatalf("status: got %s", got.Status)
	}
	if got.LockedBy != "worker" || got.LockedAt == nil {
		t.Fatal("lock fields should be set")
	}
	if got.Version != 2 {
		t.Fatalf("version: got %d, want 2", got.Version)
	}
}

func TestUpdateExecutionStaleVersion(t *testing.T) {
	s := New()

	x := pendingExecution(id.NewEventID())
	s.CreateExecutionBatch(ctx(), []*dispatch.Execution{x})

	claimed, err := s.ClaimExecution(ctx(), x.ID, 1, "w1")
	if err != nil {
		t.Fatal(err)
	}

	stale := copyExecution(claimed)
	stale.Version = 1
	if err := s.UpdateExecution(ctx(), stale); !errors.Is(err, dispatch.ErrStaleVersion) {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}

	claimed.Status = dispatch.StatusProcessed
	if err := s.UpdateExecution(ctx(), claimed); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetExecution(ctx(), x.ID)
	if got.Status != dispatch.StatusProcessed || got.Version != 3 {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestCountPendingExecutions(t *testing.T) {
	s := New()
	eventID := id.NewEventID()

	a := pendingExecution(eventID)
	b := pendingExecution(eventID)
	s.CreateExecutionBatch(ctx(), []*dispatch.Execution{a, b})

	count, _ := s.CountPendingExecutions(ctx())
	if count != 2 {
		t.Fatalf("expected 2 pending, got %d", count)
	}

	claimed, _ := s.ClaimExecution(ctx(), a.ID, 1, "w")
	claimed.Status = dispatch.StatusProcessed
	s.UpdateExecution(ctx(), claimed)

	count, _ = s.CountPendingExecutions(ctx())
	if count != 1 {
		t.Fatalf("expected 1 pending after completion, got %d", count)
	}
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

func dlqEntry(handler string) *dlq.Entry {
	return &dlq.Entry{
		Entity:       entity.New(),
		ID:           id.NewDLQID(),
		ExecutionID:  id.NewExecutionID(),
		EventID:      id.NewEventID(),
		Provider:     "stripe-main",
		Handler:      handler,
		EventType:    "charge.succeeded",
		Payload:      json.RawMessage(`{}`),
		Error:        "downstream unavailable",
		AttemptCount: 3,
		MaxAttempts:  3,
		RetryDelays:  []int{1, 2},
		FailedAt:     time.Now().UTC(),
	}
}

func TestDLQReplay(t *testing.T) {
	s := New()

	e := dlqEntry("ledger")
	if err := s.Push(ctx(), e); err != nil {
		t.Fatal(err)
	}

	if err := s.Replay(ctx(), e.ID); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetDLQ(ctx(), e.ID)
	if got.ReplayedAt == nil {
		t.Fatal("replayed at should be set")
	}

	execs, _ := s.ListExecutionsByEvent(ctx(), e.EventID)
	if len(execs) != 1 {
		t.Fatalf("replay should enqueue 1 execution, got %d", len(execs))
	}
	x := execs[0]
	if x.Handler != "ledger" || x.MaxAttempts != 3 || len(x.RetryDelays) != 2 {
		t.Fatalf("policy snapshot not carried: %+v", x)
	}
	if x.Status != dispatch.StatusPending || x.AttemptCount != 0 {
		t.Fatalf("replayed execution should start fresh: %+v", x)
	}
}

func TestDLQReplayBulkSkipsReplayed(t *testing.T) {
	s := New()

	a := dlqEntry("ledger")
	b := dlqEntry("notify")
	s.Push(ctx(), a)
	s.Push(ctx(), b)
	s.Replay(ctx(), a.ID)

	count, err := s.ReplayBulk(ctx(), time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("only the un-replayed entry should count, got %d", count)
	}
}

func TestDLQListFiltersAndPurge(t *testing.T) {
	s := New()

	s.Push(ctx(), dlqEntry("ledger"))
	s.Push(ctx(), dlqEntry("notify"))

	byHandler, _ := s.ListDLQ(ctx(), dlq.ListOpts{Handler: "notify"})
	if len(byHandler) != 1 {
		t.Fatalf("handler filter wrong, got %d", len(byHandler))
	}

	purged, _ := s.Purge(ctx(), time.Now().Add(time.Second))
	if purged != 2 {
		t.Fatalf("expected 2 purged, got %d", purged)
	}
	count, _ := s.CountDLQ(ctx())
	if count != 0 {
		t.Fatalf("expected empty DLQ, got %d", count)
	}
}
