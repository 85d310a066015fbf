package models

import "strings"

// CloneStrings returns a copy of ss that is never nil.
func CloneStrings(ss []string) []string {
	out := make([]string, len(ss))
	copy(out, ss)
	return out
}

// CompactStrings trims each element and drops empty ones.
// The result is never nil.
func CompactStrings(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
