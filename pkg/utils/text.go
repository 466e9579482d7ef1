// Package utils provides shared utilities for text, math, and logging.
package utils

import "strings"

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// QueryWords splits a query into lowercase words on whitespace, dropping empties.
func QueryWords(q string) []string {
	fields := strings.Fields(strings.ToLower(q))
	words := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			words = append(words, f)
		}
	}
	return words
}

// StemOverlap reports whether the extension-stripped stem of either name is
// contained in the other. Used for fuzzy matching of episode filenames.
func StemOverlap(a, b string) bool {
	stemA := stem(a)
	stemB := stem(b)
	if stemA == "" || stemB == "" {
		return false
	}
	return strings.Contains(a, stemB) || strings.Contains(b, stemA)
}

func stem(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}
