package signature

import (
	"net/http"
	"strconv"
)

// stripeSignatureHeaders are the header names checked for the signature
// value, in order of preference.
var stripeSignatureHeaders = []string{"Stripe-Signature", "X-Signature"}

// StripeScheme verifies Stripe-style signatures: a "t=<unix>,v1=<hex>" header
// where each v1 is a hex HMAC-SHA256 over "{t}.{rawBody}". Multiple v1 values
// may be present while the sender rotates secrets; any one matching is
// sufficient. Event id and type come from the payload's "id" and "type".
type StripeScheme struct{}

// Name implements Scheme.
func (StripeScheme) Name() string { return "stripe" }

// Verify implements Scheme.
func (StripeScheme) Verify(body []byte, h http.Header, cfg SchemeConfig) bool {
	raw := Lookup(h, stripeSignatureHeaders...)
	if raw == "" {
		return false
	}

	kv := ParseKV(raw)
	ts := kv["t"]
	candidates := kv["v1"]
	if len(ts) == 0 || len(candidates) == 0 {
		return false
	}

	t, err := strconv.ParseInt(ts[0], 10, 64)
	if err != nil {
		return false
	}

	expected := Sign(body, cfg.Secret, t)
	for _, c := range candidates {
		if Equal(expected, "v1="+c) {
			return true
		}
	}
	return false
}

// ExtractTimestamp implements Scheme.
func (StripeScheme) ExtractTimestamp(h http.Header) (int64, bool) {
	raw := Lookup(h, stripeSignatureHeaders...)
	if raw == "" {
		return 0, false
	}
	ts := ParseKV(raw)["t"]
	if len(ts) == 0 {
		return 0, false
	}
	t, err := strconv.ParseInt(ts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return t, true
}

// ExtractEventID implements Scheme.
func (StripeScheme) ExtractEventID(body []byte, _ http.Header) string {
	return envelopeOf(body).ID
}

// ExtractEventType implements Scheme.
func (StripeScheme) ExtractEventType(body []byte, _ http.Header) string {
	return envelopeOf(body).Type
}
