// Package reconcile implements the record reconciliation core: name
// normalization, fuzzy similarity scoring, duplicate detection, field merge
// classification, and differential assembly. Everything in this package is
// pure — it operates on in-memory snapshots and returns plain values, so the
// hard logic is fully testable without a live store.
package reconcile

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// deaccent decomposes to NFD and drops combining marks, so "José" and "Jose"
// normalize to the same form.
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize maps a display name to its canonical comparison form:
//  1. Strips diacritics (NFD decomposition, combining marks removed)
//  2. Lower-cases
//  3. Drops every character outside [a-z] and whitespace
//  4. Collapses whitespace runs into single spaces and trims
//
// Normalize is deterministic, total, and idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	if folded, _, err := transform.String(deaccent, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	out := multiSpaceRe.ReplaceAllString(b.String(), " ")
	return strings.TrimSpace(out)
}

// NormalizeEqual reports whether two strings are equal after normalization.
func NormalizeEqual(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
