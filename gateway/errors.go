package gateway

import "net/http"

// Reason classifies why the gateway refused a request.
type Reason string

const (
	// ReasonProviderNotFound means no provider config matches the name.
	ReasonProviderNotFound Reason = "provider_not_found"

	// ReasonProviderInactive means the provider exists but admission is disabled.
	ReasonProviderInactive Reason = "provider_inactive"

	// ReasonInvalidToken means the URL credential did not match.
	ReasonInvalidToken Reason = "invalid_token"

	// ReasonRateLimited means the provider's sliding window is full.
	ReasonRateLimited Reason = "rate_limited"

	// ReasonPayloadTooLarge means the raw body exceeds the provider's cap.
	ReasonPayloadTooLarge Reason = "payload_too_large"

	// ReasonInvalidSignature means signature verification failed.
	ReasonInvalidSignature Reason = "invalid_signature"

	// ReasonStaleTimestamp means the signed timestamp is outside tolerance,
	// in either direction.
	ReasonStaleTimestamp Reason = "stale_timestamp"

	// ReasonMalformedPayload means the verified body is not valid JSON.
	ReasonMalformedPayload Reason = "malformed_payload"

	// ReasonSchemaViolation means the payload failed the provider's JSON Schema.
	ReasonSchemaViolation Reason = "schema_violation"
)

// AdmissionError is a terminal refusal of one inbound request. The gateway
// never retries; the sender is expected to redeliver.
type AdmissionError struct {
	Reason  Reason
	Message string
}

func (e *AdmissionError) Error() string {
	return "intake: admission refused: " + string(e.Reason) + ": " + e.Message
}

// HTTPStatus maps the refusal to the response code the ingestion endpoint
// must return.
func (e *AdmissionError) HTTPStatus() int {
	switch e.Reason {
	case ReasonProviderNotFound:
		return http.StatusNotFound
	case ReasonProviderInactive:
		return http.StatusForbidden
	case ReasonInvalidToken, ReasonInvalidSignature:
		return http.StatusUnauthorized
	case ReasonRateLimited:
		return http.StatusTooManyRequests
	case ReasonPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ReasonStaleTimestamp, ReasonMalformedPayload, ReasonSchemaViolation:
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}

func refuse(reason Reason, message string) *AdmissionError {
	return &AdmissionError{Reason: reason, Message: message}
}
