package signature

import "crypto/hmac"

// Equal compares two signature strings in constant time.
// A length mismatch returns false immediately without comparing (length is
// not secret), while equal-length inputs are always compared in full so the
// position of the first differing byte never leaks through timing.
func Equal(expected, candidate string) bool {
	return hmac.Equal([]byte(expected), []byte(candidate))
}

// Verify checks whether the given signature matches the expected HMAC-SHA256
// signature for the payload, secret, and timestamp.
func Verify(payload []byte, secret string, timestamp int64, sig string) bool {
	return Equal(Sign(payload, secret, timestamp), sig)
}
