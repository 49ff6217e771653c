// Package memory provides an in-memory Store implementation for unit testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/intake"
	"github.com/xraph/intake/dispatch"
	"github.com/xraph/intake/dlq"
	"github.com/xraph/intake/event"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/provider"
	intakestore "github.com/xraph/intake/store"
)

// compile-time interface check.
var _ intakestore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store for testing.
type Store struct {
	mu sync.RWMutex

	providers     map[string]*provider.Config    // keyed by name
	events        map[string]*event.Event        // keyed by ID string
	eventsByDedup map[string]*event.Event        // keyed by provider + externalID
	executions    map[string]*dispatch.Execution // keyed by ID string
	locked        map[string]bool                // simulates SKIP LOCKED
	dlqEntries    map[string]*dlq.Entry          // keyed by ID string

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		providers:     make(map[string]*provider.Config),
		events:        make(map[string]*event.Event),
		eventsByDedup: make(map[string]*event.Event),
		executions:    make(map[string]*dispatch.Execution),
		locked:        make(map[string]bool),
		dlqEntries:    make(map[string]*dlq.Entry),
	}
}

// dedupKey builds the idempotency key for (provider, externalID).
func dedupKey(providerName, externalID string) string {
	return providerName + "\x00" + externalID
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return intake.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// provider.Store
// ──────────────────────────────────────────────────

// CreateProvider persists a new provider config. Name and token are unique.
func (s *Store) CreateProvider(_ context.Context, p *provider.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.providers[p.Name]; ok {
		return provider.ErrExists
	}
	for _, existing := range s.providers {
		if existing.Token == p.Token {
			return provider.ErrExists
		}
	}

	s.providers[p.Name] = copyProvider(p)
	return nil
}

// GetProvider returns a provider config by name.
func (s *Store) GetProvider(_ context.Context, name string) (*provider.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.providers[name]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return copyProvider(p), nil
}

// UpdateProvider modifies an existing provider config.
func (s *Store) UpdateProvider(_ context.Context, p *provider.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.providers[p.Name]; !ok {
		return provider.ErrNotFound
	}
	cp := copyProvider(p)
	cp.UpdatedAt = time.Now().UTC()
	s.providers[p.Name] = cp
	return nil
}

// ListProviders returns provider configs, optionally filtered.
func (s *Store) ListProviders(_ context.Context, opts provider.ListOpts) ([]*provider.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*provider.Config, 0, len(s.providers))
	for _, p := range s.providers {
		if opts.ActiveOnly && !p.Active {
			continue
		}
		result = append(result, copyProvider(p))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// SetProviderActive toggles admission for a provider.
func (s *Store) SetProviderActive(_ context.Context, name string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.providers[name]
	if !ok {
		return provider.ErrNotFound
	}
	p.Active = active
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// FindOrCreateEvent inserts ev unless its (provider, externalID) pair exists.
// A duplicate hit flips the existing row's dedup state and leaves everything
// else untouched.
func (s *Store) FindOrCreateEvent(_ context.Context, ev *event.Event) (*event.Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey(ev.Provider, ev.ExternalID)
	if existing, ok := s.eventsByDedup[key]; ok {
		existing.DedupState = event.DedupDuplicate
		existing.UpdatedAt = time.Now().UTC()
		return copyEvent(existing), false, nil
	}

	s.events[ev.ID.String()] = ev
	s.eventsByDedup[key] = ev
	return copyEvent(ev), true, nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(_ context.Context, eventID id.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[eventID.String()]
	if !ok {
		return nil, event.ErrNotFound
	}
	return copyEvent(ev), nil
}

// UpdateEventStatus sets the aggregate status of an event.
func (s *Store) UpdateEventStatus(_ context.Context, eventID id.ID, status event.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[eventID.String()]
	if !ok {
		return event.ErrNotFound
	}
	ev.Status = status
	ev.UpdatedAt = time.Now().UTC()
	return nil
}

// ListEvents returns events matching opts, newest first.
func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0, len(s.events))
	for _, ev := range s.events {
		if opts.Provider != "" && ev.Provider != opts.Provider {
			continue
		}
		if opts.Status != "" && ev.Status != opts.Status {
			continue
		}
		if opts.Type != "" && ev.Type != opts.Type {
			continue
		}
		if !opts.Since.IsZero() && ev.CreatedAt.Before(opts.Since) {
			continue
		}
		result = append(result, copyEvent(ev))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ──────────────────────────────────────────────────
// dispatch.Store
// ──────────────────────────────────────────────────

// CreateExecutionBatch persists all executions or none of them.
func (s *Store) CreateExecutionBatch(_ context.Context, execs []*dispatch.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, x := range execs {
		s.executions[x.ID.String()] = copyExecution(x)
	}
	return nil
}

// DequeueExecutions fetches pending executions ready for attempt.
// Returns copies so callers can mutate without holding a lock.
func (s *Store) DequeueExecutions(_ context.Context, limit int) ([]*dispatch.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	candidates := make([]*dispatch.Execution, 0, len(s.executions))

	for _, x := range s.executions {
		if x.Status != dispatch.StatusPending {
			continue
		}
		if x.NextAttemptAt.After(now) {
			continue
		}
		if s.locked[x.ID.String()] {
			continue
		}
		candidates = append(candidates, x)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].NextAttemptAt.Before(candidates[j].NextAttemptAt)
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]*dispatch.Execution, 0, len(candidates))
	for _, x := range candidates {
		s.locked[x.ID.String()] = true
		result = append(result, copyExecution(x))
	}

	return result, nil
}

// ClaimExecution moves an execution to processing with a version check.
func (s *Store) ClaimExecution(_ context.Context, execID id.ID, version int64, workerID string) (*dispatch.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, ok := s.executions[execID.String()]
	if !ok {
		return nil, dispatch.ErrNotFound
	}
	if x.Version != version {
		return nil, dispatch.ErrStaleVersion
	}

	now := time.Now().UTC()
	x.Status = dispatch.StatusProcessing
	x.LockedBy = workerID
	x.LockedAt = &now
	x.Version++
	x.UpdatedAt = now
	return copyExecution(x), nil
}

// UpdateExecution writes x back under its version and releases the dequeue lock.
func (s *Store) UpdateExecution(_ context.Context, x *dispatch.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.executions[x.ID.String()]
	if !ok {
		return dispatch.ErrNotFound
	}
	if stored.Version != x.Version {
		return dispatch.ErrStaleVersion
	}

	cp := copyExecution(x)
	cp.Version++
	cp.UpdatedAt = time.Now().UTC()
	s.executions[x.ID.String()] = cp
	x.Version = cp.Version
	delete(s.locked, x.ID.String())
	return nil
}

// GetExecution returns a copy of the execution by ID.
func (s *Store) GetExecution(_ context.Context, execID id.ID) (*dispatch.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	x, ok := s.executions[execID.String()]
	if !ok {
		return nil, dispatch.ErrNotFound
	}
	return copyExecution(x), nil
}

// ListExecutionsByEvent returns every execution of an event.
func (s *Store) ListExecutionsByEvent(_ context.Context, eventID id.ID) ([]*dispatch.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*dispatch.Execution, 0, len(s.executions))
	for _, x := range s.executions {
		if x.EventID.String() != eventID.String() {
			continue
		}
		result = append(result, copyExecution(x))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority < result[j].Priority
		}
		return result[i].Handler < result[j].Handler
	})
	return result, nil
}

// CountPendingExecutions returns the number of executions not yet finished.
func (s *Store) CountPendingExecutions(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, x := range s.executions {
		if x.Status == dispatch.StatusPending || x.Status == dispatch.StatusProcessing {
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

// Push moves a permanently failed execution into the DLQ.
func (s *Store) Push(_ context.Context, entry *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dlqEntries[entry.ID.String()] = entry
	return nil
}

// ListDLQ returns DLQ entries, optionally filtered.
func (s *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(s.dlqEntries))
	for _, e := range s.dlqEntries {
		if opts.Provider != "" && e.Provider != opts.Provider {
			continue
		}
		if opts.Handler != "" && e.Handler != opts.Handler {
			continue
		}
		if opts.From != nil && e.FailedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && e.FailedAt.After(*opts.To) {
			continue
		}
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FailedAt.After(result[j].FailedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(_ context.Context, dlqID id.ID) (*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return nil, dlq.ErrNotFound
	}
	return e, nil
}

// Replay re-enqueues a fresh execution from the entry's policy snapshot.
func (s *Store) Replay(_ context.Context, dlqID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return dlq.ErrNotFound
	}
	if e.ReplayedAt != nil {
		return dlq.ErrAlreadyReplayed
	}

	now := time.Now().UTC()
	e.ReplayedAt = &now

	x := executionFromEntry(e, now)
	s.executions[x.ID.String()] = x
	return nil
}

// ReplayBulk replays all DLQ entries in a time window.
func (s *Store) ReplayBulk(_ context.Context, from, to time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var count int64

	for _, e := range s.dlqEntries {
		if e.FailedAt.Before(from) || e.FailedAt.After(to) {
			continue
		}
		if e.ReplayedAt != nil {
			continue
		}

		e.ReplayedAt = &now

		x := executionFromEntry(e, now)
		s.executions[x.ID.String()] = x
		count++
	}
	return count, nil
}

// Purge deletes DLQ entries older than a threshold.
func (s *Store) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for k, e := range s.dlqEntries {
		if e.CreatedAt.Before(before) {
			delete(s.dlqEntries, k)
			count++
		}
	}
	return count, nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.dlqEntries)), nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// copyProvider shields stored configs from caller mutation. Without it a
// rotate would rewrite every config previously handed out, outside the lock.
func copyProvider(p *provider.Config) *provider.Config {
	cp := *p
	return &cp
}

func copyEvent(ev *event.Event) *event.Event {
	cp := *ev
	return &cp
}

func copyExecution(x *dispatch.Execution) *dispatch.Execution {
	cp := *x
	return &cp
}

// executionFromEntry rebuilds a pending execution from a DLQ entry's
// policy snapshot. Replays run on the worker pool regardless of the
// original binding's sync flag.
func executionFromEntry(e *dlq.Entry, now time.Time) *dispatch.Execution {
	return &dispatch.Execution{
		Entity:        intake.NewEntity(),
		ID:            id.NewExecutionID(),
		EventID:       e.EventID,
		Provider:      e.Provider,
		Handler:       e.Handler,
		Priority:      e.Priority,
		Async:         true,
		Status:        dispatch.StatusPending,
		MaxAttempts:   e.MaxAttempts,
		RetryDelays:   e.RetryDelays,
		Version:       1,
		NextAttemptAt: now,
	}
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
