// Package pattern implements the glob-lite pattern matcher shared by the
// capability grant table and the message broker's topic routing table.
//
// Matching rules:
//   - "*" matches anything.
//   - "prefix/*" matches any string beginning with "prefix/" that has at
//     least one further character.
//   - "*.suffix" matches any string ending with ".suffix" that has at
//     least one character before the dot.
//   - anything else must match the target exactly.
package pattern

import "strings"

// Match is a total function: for any (pattern, target) pair it returns
// exactly one boolean, never an error.
func Match(p, target string) bool {
	if p == "*" {
		return true
	}

	if strings.HasSuffix(p, "/*") {
		prefix := strings.TrimSuffix(p, "*")
		return strings.HasPrefix(target, prefix) && len(target) > len(prefix)
	}

	if strings.HasPrefix(p, "*.") {
		suffix := strings.TrimPrefix(p, "*")
		return strings.HasSuffix(target, suffix) && len(target) > len(suffix)
	}

	return p == target
}

// MatchAny reports whether target matches at least one of patterns.
func MatchAny(patterns []string, target string) bool {
	for _, p := range patterns {
		if Match(p, target) {
			return true
		}
	}
	return false
}
