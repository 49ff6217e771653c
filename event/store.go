package event

import (
	"context"
	"errors"

	"github.com/xraph/intake/id"
)

// ErrNotFound is returned when an event cannot be found.
var ErrNotFound = errors.New("intake: event not found")

// Store persists events with storage-level deduplication on
// (provider, external ID).
type Store interface {
	// FindOrCreateEvent inserts ev unless an event with the same
	// (Provider, ExternalID) already exists. It returns the stored event and
	// whether this call created it. On a duplicate the existing event's dedup
	// state is flipped to DedupDuplicate; nothing else changes.
	FindOrCreateEvent(ctx context.Context, ev *Event) (*Event, bool, error)

	// GetEvent returns an event by ID.
	GetEvent(ctx context.Context, eventID id.ID) (*Event, error)

	// UpdateEventStatus sets the aggregate status of an event.
	UpdateEventStatus(ctx context.Context, eventID id.ID, status Status) error

	// ListEvents returns events matching opts, newest first.
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)
}
