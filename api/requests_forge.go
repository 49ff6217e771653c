package api

import (
	"encoding/json"

	"github.com/xraph/intake/provider"
)

// ---------------------------------------------------------------------------
// Provider requests
// ---------------------------------------------------------------------------

// CreateProviderForgeRequest binds the body for POST /providers.
type CreateProviderForgeRequest struct {
	Name               string            `description:"Provider instance name"               json:"name"`
	Token              string            `description:"URL credential (generated if empty)"  json:"token,omitempty"`
	Secret             string            `description:"Signing secret (generated if empty)"  json:"secret,omitempty"`
	Scheme             string            `description:"Signature scheme (stripe, github, none)" json:"scheme"`
	TimestampTolerance int               `description:"Allowed timestamp skew in seconds"    json:"timestamp_tolerance,omitempty"`
	MaxPayloadBytes    int64             `description:"Raw body size cap in bytes"           json:"max_payload_bytes,omitempty"`
	RateLimitRequests  int               `description:"Admissions per window"                json:"rate_limit_requests,omitempty"`
	RateLimitPeriod    int               `description:"Window length in seconds"             json:"rate_limit_period,omitempty"`
	PayloadSchema      json.RawMessage   `description:"JSON Schema for payload validation"   json:"payload_schema,omitempty"`
	Metadata           map[string]string `description:"Arbitrary key-value metadata"         json:"metadata,omitempty"`
}

// ListProvidersForgeRequest binds query parameters for GET /providers.
type ListProvidersForgeRequest struct {
	Active string `description:"Only active providers"  query:"active"`
	Offset int    `description:"Pagination offset"      query:"offset"`
	Limit  int    `description:"Page size (default 50)" query:"limit"`
}

// GetProviderForgeRequest binds the path for GET /providers/:name.
type GetProviderForgeRequest struct {
	Name string `description:"Provider name" path:"name"`
}

// UpdateProviderForgeRequest binds path + body for PUT /providers/:name.
type UpdateProviderForgeRequest struct {
	Name               string            `description:"Provider name"                        path:"name"`
	Secret             string            `description:"Signing secret"                       json:"secret,omitempty"`
	Scheme             string            `description:"Signature scheme"                     json:"scheme,omitempty"`
	TimestampTolerance int               `description:"Allowed timestamp skew in seconds"    json:"timestamp_tolerance,omitempty"`
	MaxPayloadBytes    int64             `description:"Raw body size cap in bytes"           json:"max_payload_bytes,omitempty"`
	RateLimitRequests  int               `description:"Admissions per window"                json:"rate_limit_requests,omitempty"`
	RateLimitPeriod    int               `description:"Window length in seconds"             json:"rate_limit_period,omitempty"`
	PayloadSchema      json.RawMessage   `description:"JSON Schema for payload validation"   json:"payload_schema,omitempty"`
	Metadata           map[string]string `description:"Arbitrary key-value metadata"         json:"metadata,omitempty"`
}

// ProviderActionForgeRequest binds the path for activate/deactivate/rotate.
type ProviderActionForgeRequest struct {
	Name string `description:"Provider name" path:"name"`
}

// ---------------------------------------------------------------------------
// Event requests
// ---------------------------------------------------------------------------

// ListEventsForgeRequest binds query parameters for GET /events.
type ListEventsForgeRequest struct {
	Provider string `description:"Filter by provider"     query:"provider"`
	Status   string `description:"Filter by status"       query:"status"`
	Type     string `description:"Filter by event type"   query:"type"`
	Since    string `description:"Lower bound (RFC3339)"  query:"since"`
	Offset   int    `description:"Pagination offset"      query:"offset"`
	Limit    int    `description:"Page size (default 50)" query:"limit"`
}

// GetEventForgeRequest binds the path for GET /events/:eventId.
type GetEventForgeRequest struct {
	EventID string `description:"Event identifier" path:"eventId"`
}

// ListExecutionsForgeRequest binds the path for GET /events/:eventId/executions.
type ListExecutionsForgeRequest struct {
	EventID string `description:"Event identifier" path:"eventId"`
}

// ---------------------------------------------------------------------------
// DLQ requests
// ---------------------------------------------------------------------------

// ListDLQForgeRequest binds query parameters for GET /dlq.
type ListDLQForgeRequest struct {
	Provider string `description:"Filter by provider"     query:"provider"`
	Handler  string `description:"Filter by handler"      query:"handler"`
	Offset   int    `description:"Pagination offset"      query:"offset"`
	Limit    int    `description:"Page size (default 50)" query:"limit"`
}

// ReplayDLQForgeRequest binds the path for POST /dlq/:dlqId/replay.
type ReplayDLQForgeRequest struct {
	DLQID string `description:"DLQ entry identifier" path:"dlqId"`
}

// ReplayBulkDLQForgeRequest binds the body for POST /dlq/replay.
type ReplayBulkDLQForgeRequest struct {
	From string `description:"Start time (RFC3339)" json:"from"`
	To   string `description:"End time (RFC3339)"   json:"to"`
}

// ---------------------------------------------------------------------------
// Stats requests
// ---------------------------------------------------------------------------

// StatsForgeRequest is empty; GET /stats takes no parameters.
type StatsForgeRequest struct{}

// StatsForgeResponse is the response for GET /stats.
type StatsForgeResponse struct {
	PendingExecutions int64 `json:"pending_executions"`
	DLQSize           int64 `json:"dlq_size"`
}

// SecretForgeResponse is the response for POST /providers/:name/rotate-secret.
type SecretForgeResponse struct {
	Secret string `json:"secret"`
}

// TokenForgeResponse is the response for POST /providers/:name/rotate-token.
type TokenForgeResponse struct {
	Token string `json:"token"`
}

// CreateProviderForgeResponse returns the stored provider along with the
// token, which is serialized nowhere else.
type CreateProviderForgeResponse struct {
	Provider *provider.Config `json:"provider"`
	Token    string           `json:"token"`
}

// ReplayBulkForgeResponse is the response for POST /dlq/replay.
type ReplayBulkForgeResponse struct {
	Replayed int64 `json:"replayed"`
}
