package signature

import (
	"net/http"
	"strings"
)

// Lookup returns the first non-empty value among the given header names.
// Matching is case-insensitive (net/http canonicalizes keys on Get).
func Lookup(h http.Header, names ...string) string {
	for _, name := range names {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// ParseKV parses a comma-separated key=value signature header such as
// "t=1690000000,v1=abc,v1=def,v0=old" into a map from key to the list of
// values seen for that key. Keys that repeat (multiple valid signatures
// during secret rotation) accumulate in order. Malformed elements without
// an "=" are skipped.
func ParseKV(value string) map[string][]string {
	out := make(map[string][]string)
	for _, part := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || k == "" {
			continue
		}
		out[k] = append(out[k], v)
	}
	return out
}
