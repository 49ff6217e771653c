// Package provider defines the per-provider webhook configuration and its
// management service.
package provider

import (
	"encoding/json"

	"github.com/xraph/intake/internal/entity"
)

// Config describes one external service instance that pushes webhooks.
// Several instances of the same provider family may coexist (two Stripe
// accounts, say); each gets its own name, token, and secret.
type Config struct {
	entity.Entity

	// Name uniquely identifies this provider instance. It is the first URL
	// path segment of the ingestion endpoint.
	Name string `json:"name"`

	// Token is the URL credential, the second path segment. Compared in
	// constant time on every request. Never serialized.
	Token string `json:"-"`

	// Secret is the resolved signing secret handed to the signature scheme.
	// Never serialized.
	Secret string `json:"-"`

	// Scheme names the signature scheme used to verify requests
	// (e.g. "stripe", "github", "none").
	Scheme string `json:"scheme"`

	// Active gates admission; inactive providers are rejected with 403.
	Active bool `json:"active"`

	// TimestampTolerance is the allowed absolute skew, in seconds, between
	// the signed timestamp and the gateway clock. 0 disables the check.
	TimestampTolerance int `json:"timestamp_tolerance"`

	// MaxPayloadBytes caps the raw request body size. 0 disables the check.
	MaxPayloadBytes int64 `json:"max_payload_bytes"`

	// RateLimitRequests and RateLimitPeriod define the sliding window:
	// at most RateLimitRequests admissions per RateLimitPeriod seconds.
	// RateLimitRequests == 0 disables limiting.
	RateLimitRequests int `json:"rate_limit_requests"`
	RateLimitPeriod   int `json:"rate_limit_period"`

	// PayloadSchema is an optional JSON Schema the parsed payload must
	// satisfy after verification.
	PayloadSchema json.RawMessage `json:"payload_schema,omitempty"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ListOpts configures filtering and pagination for provider listing.
type ListOpts struct {
	Offset     int
	Limit      int
	ActiveOnly bool
}
