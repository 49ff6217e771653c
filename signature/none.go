package signature

import "net/http"

// NoneScheme accepts every request without signature or timestamp checks.
// It exists for providers that explicitly opt out of verification; the
// gateway's token check remains their only authentication.
type NoneScheme struct{}

// Name implements Scheme.
func (NoneScheme) Name() string { return "none" }

// Verify implements Scheme.
func (NoneScheme) Verify(_ []byte, _ http.Header, _ SchemeConfig) bool { return true }

// ExtractTimestamp implements Scheme.
func (NoneScheme) ExtractTimestamp(_ http.Header) (int64, bool) { return 0, false }

// ExtractEventID implements Scheme.
func (NoneScheme) ExtractEventID(body []byte, _ http.Header) string {
	return envelopeOf(body).ID
}

// ExtractEventType implements Scheme.
func (NoneScheme) ExtractEventType(body []byte, _ http.Header) string {
	return envelopeOf(body).Type
}
