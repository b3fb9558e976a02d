// Package utils holds small helpers for reading request parameters.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as a base-10 int, returning def when s is empty or
// not a number. Surrounding whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// IntInRange parses s like AtoiDefault and clamps the result to [lo, hi].
// Query limits such as ?past=, ?next= and ?page_size= go through here.
func IntInRange(s string, def, lo, hi int) int {
	return min(max(AtoiDefault(strings.TrimSpace(s), def), lo), hi)
}
