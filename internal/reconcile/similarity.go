package reconcile

import (
	"strings"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
)

// Default classification thresholds. These are starting points, not policy:
// callers configure Thresholds per dataset.
const (
	DefaultHighSimilarity      = 0.85
	DefaultFirstNameSimilarity = 0.70
	DefaultPrefixMatchMinLen   = 3
)

// Thresholds holds the tunable cutoffs used by duplicate classification.
type Thresholds struct {
	// HighSimilarity is the minimum similarity ratio (exclusive) for a pair
	// to classify as a high-similarity duplicate.
	HighSimilarity float64 `json:"high_similarity" yaml:"high_similarity" mapstructure:"high_similarity"`

	// FirstNameSimilarity is the minimum first-name similarity (exclusive)
	// for the same-last-name-variant classification.
	FirstNameSimilarity float64 `json:"first_name_similarity" yaml:"first_name_similarity" mapstructure:"first_name_similarity"`

	// PrefixMatchMinLen is the minimum length of a case-insensitive first
	// name prefix ("Rob" / "Robert") that counts as a variant match.
	PrefixMatchMinLen int `json:"prefix_match_min_len" yaml:"prefix_match_min_len" mapstructure:"prefix_match_min_len"`
}

// DefaultThresholds returns the standard classification thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighSimilarity:      DefaultHighSimilarity,
		FirstNameSimilarity: DefaultFirstNameSimilarity,
		PrefixMatchMinLen:   DefaultPrefixMatchMinLen,
	}
}

// Validate rejects threshold values that cannot classify anything sensibly.
// Invalid thresholds are a startup failure, not something to limp along with.
func (t Thresholds) Validate() error {
	if t.HighSimilarity < 0 || t.HighSimilarity > 1 {
		return eris.Errorf("thresholds: high_similarity %v outside [0,1]", t.HighSimilarity)
	}
	if t.FirstNameSimilarity < 0 || t.FirstNameSimilarity > 1 {
		return eris.Errorf("thresholds: first_name_similarity %v outside [0,1]", t.FirstNameSimilarity)
	}
	if t.PrefixMatchMinLen < 1 {
		return eris.Errorf("thresholds: prefix_match_min_len %d must be positive", t.PrefixMatchMinLen)
	}
	return nil
}

// Similarity computes a Levenshtein-based similarity ratio between the
// lower-cased inputs: 1 - distance/max(len). 1.0 means identical, 0.0 means
// nothing in common. Two empty strings score 1.0; callers that should not
// treat empties as identical (the duplicate detector) skip them before
// scoring.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	return levenshtein.Similarity(a, b, nil)
}

// LastNameMatch reports whether two names share the same final whitespace
// token, compared case-insensitively. Used to gate the same-last-name-variant
// classification independent of overall similarity.
func LastNameMatch(a, b string) bool {
	la := lastToken(a)
	lb := lastToken(b)
	if la == "" || lb == "" {
		return false
	}
	return strings.EqualFold(la, lb)
}

// FirstName returns the leading whitespace token of a name, or "".
func FirstName(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// prefixVariant reports whether one string is a case-insensitive prefix of
// the other, with the shorter at least minLen runes long. Catches common
// nickname truncations ("Rob" vs "Robert").
func prefixVariant(a, b string, minLen int) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(a) < minLen {
		return false
	}
	return strings.HasPrefix(b, a)
}

func lastToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
