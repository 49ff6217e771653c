// Package event defines the persisted webhook event and its store contract.
package event

import (
	"encoding/json"
	"time"

	"github.com/xraph/intake/id"
	"github.com/xraph/intake/internal/entity"
)

// Status tracks an event through its lifecycle.
type Status string

const (
	// StatusReceived means the event is persisted but no execution has run.
	StatusReceived Status = "received"

	// StatusProcessing means at least one execution is in flight or pending.
	StatusProcessing Status = "processing"

	// StatusProcessed means every execution completed successfully.
	StatusProcessed Status = "processed"

	// StatusFailed means at least one execution exhausted its attempts.
	StatusFailed Status = "failed"
)

// DedupState records whether the event was the first arrival for its
// (provider, external ID) pair.
type DedupState string

const (
	// DedupUnique marks the first arrival.
	DedupUnique DedupState = "unique"

	// DedupDuplicate marks an event that has seen at least one redelivery.
	DedupDuplicate DedupState = "duplicate"
)

// Event is one admitted webhook delivery. Redeliveries of the same
// (Provider, ExternalID) pair collapse onto the original row.
type Event struct {
	entity.Entity

	ID id.ID `json:"id"`

	// Provider names the provider config the event arrived through.
	Provider string `json:"provider"`

	// ExternalID is the sender-assigned delivery identifier, or a hash of
	// the body when the sender supplies none.
	ExternalID string `json:"external_id"`

	// Type is the sender-declared event type ("payment_intent.succeeded").
	Type string `json:"type"`

	// Payload is the verified request body.
	Payload json.RawMessage `json:"payload"`

	// Headers carries the request headers captured at admission.
	Headers map[string]string `json:"headers,omitempty"`

	Status     Status     `json:"status"`
	DedupState DedupState `json:"dedup_state"`
}

// New creates an event in the received state.
func New(provider, externalID, eventType string, payload json.RawMessage, headers map[string]string) *Event {
	return &Event{
		Entity:     entity.New(),
		ID:         id.NewEventID(),
		Provider:   provider,
		ExternalID: externalID,
		Type:       eventType,
		Payload:    payload,
		Headers:    headers,
		Status:     StatusReceived,
		DedupState: DedupUnique,
	}
}

// ListOpts filters event listings.
type ListOpts struct {
	Provider string
	Status   Status
	Type     string
	Since    time.Time
	Offset   int
	Limit    int
}
