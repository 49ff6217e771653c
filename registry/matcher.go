package registry

import "strings"

// Match reports whether an event type matches a pattern. Patterns are
// dot-separated segments where "*" matches exactly one segment, and a
// bare "*" matches any type.
func Match(pattern, eventType string) bool {
	if pattern == eventType {
		return true
	}
	if pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}

	pp := strings.Split(pattern, ".")
	tp := strings.Split(eventType, ".")
	if len(pp) != len(tp) {
		return false
	}
	for i, seg := range pp {
		if seg == "*" {
			continue
		}
		if seg != tp[i] {
			return false
		}
	}
	return true
}

// IsPattern reports whether s contains glob syntax.
func IsPattern(s string) bool {
	return strings.Contains(s, "*")
}
