package provider

import "encoding/json"

// Input is the creation/update payload for provider configs, the shape the
// configuration feed supplies at startup and over the admin API.
type Input struct {
	// Name uniquely identifies the provider instance.
	Name string `json:"name"`

	// Token is the URL credential. Auto-generated if empty on create.
	Token string `json:"token"`

	// Secret is the signing secret. Auto-generated if empty on create.
	Secret string `json:"secret"`

	// Scheme names the signature scheme ("stripe", "github", "none").
	Scheme string `json:"scheme"`

	// TimestampTolerance is the allowed timestamp skew in seconds. 0 disables.
	TimestampTolerance int `json:"timestamp_tolerance,omitempty"`

	// MaxPayloadBytes caps the raw body size. 0 disables.
	MaxPayloadBytes int64 `json:"max_payload_bytes,omitempty"`

	// RateLimitRequests / RateLimitPeriod define the sliding window. 0 disables.
	RateLimitRequests int `json:"rate_limit_requests,omitempty"`
	RateLimitPeriod   int `json:"rate_limit_period,omitempty"`

	// PayloadSchema optionally constrains the parsed payload.
	PayloadSchema json.RawMessage `json:"payload_schema,omitempty"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}
