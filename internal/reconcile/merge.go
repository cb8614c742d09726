package reconcile

import (
	"strconv"
	"strings"
	"time"

	"github.com/honorwall/roster-cli/internal/model"
)

// dateLayouts are the formats accepted when deciding temporal equality.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006",
}

// MergePolicy decides, per field, whether a proposed value may be applied to
// an existing record. The policy is pure: it never touches the store and has
// no side effects.
//
// Sentinels are dataset-specific literals ("Unknown", "N/A") that mean "no
// value"; they are mapped to empty before classification, so an incoming
// sentinel never counts as data and a stored sentinel may be safely filled.
type MergePolicy struct {
	sentinels map[string]struct{}
}

// NewMergePolicy creates a MergePolicy treating the given sentinel strings
// as empty. Sentinel comparison is normalize-insensitive.
func NewMergePolicy(sentinels []string) *MergePolicy {
	m := &MergePolicy{sentinels: make(map[string]struct{}, len(sentinels))}
	for _, s := range sentinels {
		if n := Normalize(s); n != "" {
			m.sentinels[n] = struct{}{}
		}
	}
	return m
}

// Blank reports whether a value is empty after whitespace trimming and
// sentinel mapping.
func (m *MergePolicy) Blank(v string) bool {
	if strings.TrimSpace(v) == "" {
		return true
	}
	if m == nil || len(m.sentinels) == 0 {
		return false
	}
	_, ok := m.sentinels[Normalize(v)]
	return ok
}

// Classify applies the merge rules to one (existing, proposed) value pair:
//
//  1. existing empty, proposed non-empty → SafeAddition
//  2. both non-empty, equivalent but literally different → FormattingOnly
//     (the proposed value is taken as the cleaned-up canonical form)
//  3. both non-empty, genuinely different → Conflict
//  4. anything else (both empty, proposed empty, literal equality) → no update
//
// Equivalence for rule 2 is normalize-equality for strings, numeric equality
// for values that both parse as numbers, and date equality for values that
// both parse as dates.
func (m *MergePolicy) Classify(existing, proposed string) (model.Classification, bool) {
	existingBlank := m.Blank(existing)
	proposedBlank := m.Blank(proposed)

	if proposedBlank {
		return "", false
	}
	if existingBlank {
		return model.SafeAddition, true
	}
	if existing == proposed {
		return "", false
	}
	if valuesEquivalent(existing, proposed) {
		return model.FormattingOnly, true
	}
	return model.Conflict, true
}

// valuesEquivalent reports whether two non-empty literals denote the same
// value in a different representation.
func valuesEquivalent(a, b string) bool {
	// Normalize strips digits, so purely numeric or date values all collapse
	// to the empty string; only trust normalize-equality when something
	// survives normalization.
	if na := Normalize(a); na != "" && na == Normalize(b) {
		return true
	}
	if fa, okA := parseNumber(a); okA {
		if fb, okB := parseNumber(b); okB {
			return fa == fb
		}
	}
	if ta, okA := parseDate(a); okA {
		if tb, okB := parseDate(b); okB {
			return ta.Equal(tb)
		}
	}
	return false
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
