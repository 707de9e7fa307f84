package models

import "strings"

// CollapseSpace joins all whitespace runs into single spaces and trims the ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate caps s at max runes. Longer strings keep the first keep runes
// (right-trimmed) followed by suffix.
func Truncate(s string, max, keep int, suffix string) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if keep > len(r) {
		keep = len(r)
	}
	return strings.TrimRight(string(r[:keep]), " \t\n") + suffix
}
