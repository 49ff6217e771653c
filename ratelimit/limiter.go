// Package ratelimit provides sliding-window request limiting keyed by
// provider name.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter answers whether one more admission fits inside a provider's
// sliding window. A limit of 0 means unlimited.
type Limiter interface {
	// Allow records an admission attempt for key and reports whether it is
	// within limit requests per period.
	Allow(ctx context.Context, key string, limit int, period time.Duration) (bool, error)

	// Reset clears the window state for a key.
	Reset(ctx context.Context, key string) error
}

// Memory is an in-process sliding-window limiter. Suitable when a single
// gateway process serves a provider; multi-process deployments should use
// the Redis limiter so the window is shared.
type Memory struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory creates a new in-memory sliding-window limiter.
func NewMemory() *Memory {
	return &Memory{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow implements Limiter.
func (l *Memory) Allow(_ context.Context, key string, limit int, period time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-period)

	window := l.windows[key]
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		l.windows[key] = kept
		return false, nil
	}

	l.windows[key] = append(kept, now)
	return true, nil
}

// Reset implements Limiter.
func (l *Memory) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	return nil
}
