package model

import "sort"

// MatchType classifies how two records were matched by the duplicate detector.
type MatchType string

const (
	MatchExact               MatchType = "exact"
	MatchHighSimilarity      MatchType = "high_similarity"
	MatchSameLastNameVariant MatchType = "same_last_name_variant"
)

// DuplicateCandidate is one matched pair produced by the duplicate detector.
// Candidates live for a single reconciliation run; they are consumed by the
// differential builder or surfaced for manual merge decisions, never persisted
// on their own.
type DuplicateCandidate struct {
	A         Record    `json:"a" yaml:"a"`
	B         Record    `json:"b" yaml:"b"`
	MatchType MatchType `json:"match_type" yaml:"match_type"`
	Score     float64   `json:"score" yaml:"score"`
	Note      string    `json:"note,omitempty" yaml:"note,omitempty"`
}

// Classification describes what a proposed field change would do to the
// existing value.
type Classification string

const (
	// SafeAddition fills a previously empty field.
	SafeAddition Classification = "safe_addition"
	// FormattingOnly replaces a value with a normalize-equal cleaned-up form.
	FormattingOnly Classification = "formatting_only"
	// Conflict would overwrite a differing non-empty value. Never auto-applied.
	Conflict Classification = "conflict"
)

// FieldUpdate is one proposed change to a single field of a stored record.
type FieldUpdate struct {
	RecordID       string         `json:"record_id" yaml:"record_id"`
	Field          string         `json:"field" yaml:"field"`
	CurrentValue   string         `json:"current_value" yaml:"current_value"`
	ProposedValue  string         `json:"proposed_value" yaml:"proposed_value"`
	Classification Classification `json:"classification" yaml:"classification"`
	Note           string         `json:"note,omitempty" yaml:"note,omitempty"`
}

// DifferentialStats summarizes one reconciliation run.
type DifferentialStats struct {
	IncomingRecords  int `json:"incoming_records" yaml:"incoming_records"`
	ExistingRecords  int `json:"existing_records" yaml:"existing_records"`
	MatchedIncoming  int `json:"matched_incoming" yaml:"matched_incoming"`
	SafeAdditions    int `json:"safe_additions" yaml:"safe_additions"`
	FormattingFixes  int `json:"formatting_fixes" yaml:"formatting_fixes"`
	Conflicts        int `json:"conflicts" yaml:"conflicts"`
	SkippedMalformed int `json:"skipped_malformed" yaml:"skipped_malformed"`
}

// Differential is the full output of one reconciliation run: safe updates
// grouped by record id, brand-new records to insert, and flagged conflicts
// requiring human review. It is immutable once built and serializable for
// review before anything is committed.
type Differential struct {
	// Updates maps an existing record id to its non-conflicting field updates.
	// Records with zero resulting updates are omitted entirely.
	Updates map[string][]FieldUpdate `json:"updates" yaml:"updates"`

	// NewRecords are incoming records that matched nothing in the store.
	NewRecords []Record `json:"new_records" yaml:"new_records"`

	// Conflicts are updates that would overwrite differing authoritative
	// data, plus ambiguous-match flags. They must never be auto-applied.
	Conflicts []FieldUpdate `json:"conflicts" yaml:"conflicts"`

	// ReviewPairs are same-last-name-variant candidates. They never
	// contribute updates; they exist only for manual merge decisions.
	ReviewPairs []DuplicateCandidate `json:"review_pairs,omitempty" yaml:"review_pairs,omitempty"`

	// SkippedRecords names records excluded from matching (malformed input).
	SkippedRecords []string `json:"skipped_records,omitempty" yaml:"skipped_records,omitempty"`

	Stats DifferentialStats `json:"stats" yaml:"stats"`
}

// UpdateIDs returns the ids of all update groups in sorted order.
func (d *Differential) UpdateIDs() []string {
	ids := make([]string, 0, len(d.Updates))
	for id := range d.Updates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Empty reports whether the differential proposes no changes at all.
func (d *Differential) Empty() bool {
	return len(d.Updates) == 0 && len(d.NewRecords) == 0 && len(d.Conflicts) == 0
}

// ApplyError records a failed batch during change-set application.
type ApplyError struct {
	RecordID string `json:"record_id,omitempty" yaml:"record_id,omitempty"`
	Batch    int    `json:"batch" yaml:"batch"`
	Message  string `json:"message" yaml:"message"`
}

// ApplyResult is the outcome of applying a differential against the store.
type ApplyResult struct {
	RecordsPatched   int          `json:"records_patched" yaml:"records_patched"`
	RecordsCreated   int          `json:"records_created" yaml:"records_created"`
	BatchesCommitted int          `json:"batches_committed" yaml:"batches_committed"`
	FieldsSet        int          `json:"fields_set" yaml:"fields_set"`
	Verified         bool         `json:"verified" yaml:"verified"`
	Errors           []ApplyError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Failed reports whether any batch failed to commit.
func (r *ApplyResult) Failed() bool {
	return len(r.Errors) > 0
}
