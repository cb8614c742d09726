package reconcile

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/honorwall/roster-cli/internal/model"
)

// Builder assembles a full differential for one reconciliation run. It owns
// the detector and merge policy for that run and operates purely over the
// two supplied snapshots; it never reads or writes the store.
type Builder struct {
	detector *Detector
	policy   *MergePolicy
}

// NewBuilder creates a Builder with the given thresholds and sentinel set.
func NewBuilder(t Thresholds, sentinels []string) (*Builder, error) {
	det, err := NewDetector(t)
	if err != nil {
		return nil, err
	}
	return &Builder{
		detector: det,
		policy:   NewMergePolicy(sentinels),
	}, nil
}

// SetWorkers shards the pairwise scan across n goroutines.
func (b *Builder) SetWorkers(n int) {
	b.detector.Workers = n
}

// Build compares the incoming dataset against the existing store snapshot and
// produces the reviewable change-set:
//
//   - incoming records matched exactly or with high similarity against one
//     existing record become candidate update sources: each of their fields
//     runs through the merge policy, safe results land in Updates, conflicts
//     in Conflicts;
//   - incoming records matching more than one existing record are ambiguous
//     and surfaced as conflicts, never auto-resolved;
//   - several incoming records merging into one existing record may agree on
//     a field (applied once) but never overwrite each other: disagreeing
//     proposals surface as conflicts;
//   - same-last-name variants are recorded for manual review only;
//   - incoming records matching nothing become NewRecords verbatim;
//   - malformed records are skipped and logged, never fatal. A single bad
//     record must not block the batch.
func (b *Builder) Build(incoming, existing []model.Record) *model.Differential {
	log := zap.L().With(zap.String("component", "differential_builder"))

	diff := &model.Differential{
		Updates: make(map[string][]model.FieldUpdate),
	}
	diff.Stats.IncomingRecords = len(incoming)
	diff.Stats.ExistingRecords = len(existing)

	cleanIncoming := b.dropMalformed(incoming, "incoming", diff, log)
	cleanExisting := b.dropMalformed(existing, "existing", diff, log)

	// Cross-set scan, sharded per the detector's worker count. Candidates
	// arrive sorted by (incoming, existing) position, so grouping multiple
	// matches per incoming record stays deterministic whatever the shard
	// count. O(n·m); same documented scaling limit as the detector.
	strong := make(map[int][]model.Record)
	for _, ic := range b.detector.classifyCross(cleanIncoming, cleanExisting) {
		switch ic.cand.MatchType {
		case model.MatchExact, model.MatchHighSimilarity:
			strong[ic.outer] = append(strong[ic.outer], cleanExisting[ic.inner])
		case model.MatchSameLastNameVariant:
			diff.ReviewPairs = append(diff.ReviewPairs, ic.cand)
		}
	}

	for i, in := range cleanIncoming {
		matches := strong[i]

		switch {
		case len(matches) == 0:
			diff.NewRecords = append(diff.NewRecords, in.Clone())

		case len(matches) > 1:
			// Ambiguous: one incoming record matching several existing
			// records is never auto-merged.
			diff.Conflicts = append(diff.Conflicts, model.FieldUpdate{
				Field:          "name",
				ProposedValue:  in.Name(),
				Classification: model.Conflict,
				Note:           fmt.Sprintf("ambiguous match: %q matches %d existing records", in.Name(), len(matches)),
			})
			log.Warn("ambiguous match",
				zap.String("name", in.Name()),
				zap.Int("matches", len(matches)))

		default:
			diff.Stats.MatchedIncoming++
			b.mergeInto(diff, in, matches[0])
		}
	}

	diff.Stats.Conflicts = len(diff.Conflicts)
	log.Info("differential built",
		zap.Int("update_groups", len(diff.Updates)),
		zap.Int("new_records", len(diff.NewRecords)),
		zap.Int("conflicts", len(diff.Conflicts)),
		zap.Int("review_pairs", len(diff.ReviewPairs)))

	return diff
}

// mergeInto runs each incoming field through the merge policy against the
// matched existing record, accumulating results on the differential. Groups
// with zero safe updates are not emitted.
func (b *Builder) mergeInto(diff *model.Differential, in, existing model.Record) {
	var safe []model.FieldUpdate

	for _, field := range in.FieldNames() {
		proposed := in.Fields[field]
		current := existing.Fields[field]

		class, ok := b.policy.Classify(current, proposed)
		if !ok {
			continue
		}

		update := model.FieldUpdate{
			RecordID:       existing.ID,
			Field:          field,
			CurrentValue:   current,
			ProposedValue:  proposed,
			Classification: class,
		}

		if class == model.Conflict {
			diff.Conflicts = append(diff.Conflicts, update)
			continue
		}

		// Several incoming records can merge into the same existing record.
		// A field they agree on is applied once; a field they disagree on is
		// a conflict, never a last-writer win.
		if conflictedField(diff.Conflicts, existing.ID, field) {
			update.Classification = model.Conflict
			update.Note = "field already in conflict for this record"
			diff.Conflicts = append(diff.Conflicts, update)
			continue
		}
		if prior, i, ok := groupField(diff.Updates[existing.ID], field); ok {
			if prior.ProposedValue == update.ProposedValue {
				continue
			}
			b.demote(diff, existing.ID, i, prior, update)
			continue
		}

		switch class {
		case model.SafeAddition:
			diff.Stats.SafeAdditions++
		case model.FormattingOnly:
			diff.Stats.FormattingFixes++
		}
		safe = append(safe, update)
	}

	if len(safe) > 0 {
		diff.Updates[existing.ID] = append(diff.Updates[existing.ID], safe...)
	}
}

// groupField finds the update for one field inside a record's update group.
func groupField(group []model.FieldUpdate, field string) (model.FieldUpdate, int, bool) {
	for i, u := range group {
		if u.Field == field {
			return u, i, true
		}
	}
	return model.FieldUpdate{}, -1, false
}

// conflictedField reports whether a conflict for this record and field is
// already on the differential.
func conflictedField(conflicts []model.FieldUpdate, id, field string) bool {
	for _, c := range conflicts {
		if c.RecordID == id && c.Field == field {
			return true
		}
	}
	return false
}

// demote pulls an already-grouped safe update back out and records it,
// together with the disagreeing new proposal, as a conflict pair.
func (b *Builder) demote(diff *model.Differential, id string, i int, prior, update model.FieldUpdate) {
	group := diff.Updates[id]
	diff.Updates[id] = append(group[:i], group[i+1:]...)
	if len(diff.Updates[id]) == 0 {
		delete(diff.Updates, id)
	}

	switch prior.Classification {
	case model.SafeAddition:
		diff.Stats.SafeAdditions--
	case model.FormattingOnly:
		diff.Stats.FormattingFixes--
	}

	note := fmt.Sprintf("disagreeing proposals %q / %q for field %s",
		prior.ProposedValue, update.ProposedValue, update.Field)
	prior.Classification = model.Conflict
	prior.Note = note
	update.Classification = model.Conflict
	update.Note = note
	diff.Conflicts = append(diff.Conflicts, prior, update)
}

// dropMalformed filters out records without a usable fields map, recording
// them on the differential.
func (b *Builder) dropMalformed(records []model.Record, side string, diff *model.Differential, log *zap.Logger) []model.Record {
	clean := make([]model.Record, 0, len(records))
	for i, r := range records {
		if r.Malformed() {
			diff.Stats.SkippedMalformed++
			diff.SkippedRecords = append(diff.SkippedRecords,
				fmt.Sprintf("%s[%d] id=%s: missing fields", side, i, orUnset(r.ID)))
			log.Warn("skipping malformed record",
				zap.String("side", side),
				zap.Int("index", i),
				zap.String("id", r.ID))
			continue
		}
		clean = append(clean, r)
	}
	return clean
}

func orUnset(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
