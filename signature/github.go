package signature

import "net/http"

// GitHubScheme verifies GitHub-style signatures: an "X-Hub-Signature-256"
// header carrying "sha256=<hex>" where the hex is an HMAC-SHA256 over the raw
// body alone. The scheme signs no timestamp, so timestamp tolerance checks do
// not apply to providers using it. Event identity comes from delivery headers
// rather than the payload.
type GitHubScheme struct{}

// Name implements Scheme.
func (GitHubScheme) Name() string { return "github" }

// Verify implements Scheme.
func (GitHubScheme) Verify(body []byte, h http.Header, cfg SchemeConfig) bool {
	sig := Lookup(h, "X-Hub-Signature-256")
	if sig == "" {
		return false
	}
	expected := "sha256=" + HMACHex(body, cfg.Secret)
	return Equal(expected, sig)
}

// ExtractTimestamp implements Scheme. GitHub deliveries carry no signed timestamp.
func (GitHubScheme) ExtractTimestamp(_ http.Header) (int64, bool) {
	return 0, false
}

// ExtractEventID implements Scheme.
func (GitHubScheme) ExtractEventID(_ []byte, h http.Header) string {
	return Lookup(h, "X-GitHub-Delivery")
}

// ExtractEventType implements Scheme.
func (GitHubScheme) ExtractEventType(_ []byte, h http.Header) string {
	return Lookup(h, "X-GitHub-Event")
}
