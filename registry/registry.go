package registry

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ErrHandlerNotFound is returned when a handler ref has no registered
// implementation.
var ErrHandlerNotFound = errors.New("intake: handler not found")

// Registry holds the current routing table and the named handlers it
// resolves to. Lookups read an immutable snapshot so admission never
// contends with a Sync in progress.
type Registry struct {
	snap atomic.Pointer[snapshot]

	mu         sync.RWMutex
	handlers   map[string]Handler
	tombstones map[string]map[bindingKey]time.Time
}

// snapshot is one immutable generation of the routing table, indexed by
// provider with exact bindings separated from glob bindings.
type snapshot struct {
	exact    map[string]map[bindingKey]Definition
	patterns map[string][]Definition
}

// New creates an empty registry.
func New() *Registry {
	r := &Registry{
		handlers:   make(map[string]Handler),
		tombstones: make(map[string]map[bindingKey]time.Time),
	}
	r.snap.Store(emptySnapshot())
	return r
}

func emptySnapshot() *snapshot {
	return &snapshot{
		exact:    make(map[string]map[bindingKey]Definition),
		patterns: make(map[string][]Definition),
	}
}

// RegisterHandler binds a handler implementation to a reference name.
// Definitions refer to handlers by this name.
func (r *Registry) RegisterHandler(ref string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[ref] = h
}

// ResolveHandler returns the handler registered under ref.
func (r *Registry) ResolveHandler(ref string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[ref]
	if !ok {
		return nil, ErrHandlerNotFound
	}
	return h, nil
}

// Sync replaces the routing table with defs in a single snapshot swap.
// Definitions carrying DeletedAt are recorded as tombstones; the tombstone
// set is checked before re-adding, so a binding the feed once deleted stays
// suppressed even when a later sync lists it live again.
func (r *Registry) Sync(defs []Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range defs {
		if d.DeletedAt == nil {
			continue
		}
		m := r.tombstones[d.Provider]
		if m == nil {
			m = make(map[bindingKey]time.Time)
			r.tombstones[d.Provider] = m
		}
		m[d.key()] = *d.DeletedAt
	}

	next := emptySnapshot()
	for _, d := range defs {
		if d.DeletedAt != nil {
			continue
		}
		if _, dead := r.tombstones[d.Provider][d.key()]; dead {
			continue
		}
		if IsPattern(d.EventType) {
			next.patterns[d.Provider] = append(next.patterns[d.Provider], d)
			continue
		}
		m := next.exact[d.Provider]
		if m == nil {
			m = make(map[bindingKey]Definition)
			next.exact[d.Provider] = m
		}
		m[d.key()] = d
	}

	r.snap.Store(next)
}

// Lookup returns the definitions bound to (provider, eventType), ordered
// by priority then handler reference. When the same handler is reachable
// through both an exact binding and a glob binding, the exact binding wins.
func (r *Registry) Lookup(provider, eventType string) []Definition {
	snap := r.snap.Load()

	byHandler := make(map[string]Definition)
	for _, d := range snap.patterns[provider] {
		if Match(d.EventType, eventType) {
			byHandler[d.Handler] = d
		}
	}
	for k, d := range snap.exact[provider] {
		if k.eventType == eventType {
			byHandler[d.Handler] = d
		}
	}

	if len(byHandler) == 0 {
		return nil
	}

	out := make([]Definition, 0, len(byHandler))
	for _, d := range byHandler {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Handler < out[j].Handler
	})
	return out
}
