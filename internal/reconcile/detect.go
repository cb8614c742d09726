package reconcile

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/honorwall/roster-cli/internal/model"
)

// Detector classifies record pairs into duplicate candidates using the
// configured thresholds. It is stateless and safe for concurrent use.
//
// The scan is all-pairs, O(n²). Datasets in this domain are hundreds to low
// thousands of records, where that is fine; this is a documented scaling
// limit, not a hidden one.
type Detector struct {
	thresholds Thresholds

	// Workers shards the outer loop across this many goroutines when > 1.
	// Merged results are sorted by pair position, so output is identical
	// whatever the shard count.
	Workers int
}

// NewDetector creates a Detector. Invalid thresholds are rejected up front.
func NewDetector(t Thresholds) (*Detector, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Detector{thresholds: t, Workers: 1}, nil
}

// indexedCandidate is a classified candidate tagged with the pair of
// positions that produced it.
type indexedCandidate struct {
	outer, inner int
	cand         model.DuplicateCandidate
}

// FindDuplicates scans all unordered pairs of records and returns the
// duplicate candidates, classified per pair:
//
//  1. Pairs where either name is blank are skipped outright.
//  2. Normalize-equal names → exact match, score 1.0.
//  3. Similarity above the high threshold → high-similarity match.
//  4. Same last name with a similar or prefix-variant first name →
//     same-last-name variant, flagged for manual review.
//
// The first matching rule wins; later rules are not evaluated for that pair.
func (d *Detector) FindDuplicates(records []model.Record) []model.DuplicateCandidate {
	indexed := d.scanRows(len(records), func(i int) []indexedCandidate {
		var out []indexedCandidate
		for j := i + 1; j < len(records); j++ {
			if c, ok := d.Classify(records[i], records[j]); ok {
				out = append(out, indexedCandidate{outer: i, inner: j, cand: c})
			}
		}
		return out
	})
	return sortCandidates(candidates(indexed))
}

// classifyCross compares every incoming record against every existing record
// without comparing incoming records to each other, keeping the pair of
// positions that produced each candidate. The differential builder consumes
// this directly, so the reconcile path gets the same sharding as FindDuplicates
// while still grouping matches per incoming record.
func (d *Detector) classifyCross(incoming, existing []model.Record) []indexedCandidate {
	return d.scanRows(len(incoming), func(i int) []indexedCandidate {
		var out []indexedCandidate
		for j := range existing {
			if c, ok := d.Classify(incoming[i], existing[j]); ok {
				out = append(out, indexedCandidate{outer: i, inner: j, cand: c})
			}
		}
		return out
	})
}

// FindCrossDuplicates is the ranked reporting form of the cross-set scan.
func (d *Detector) FindCrossDuplicates(incoming, existing []model.Record) []model.DuplicateCandidate {
	return sortCandidates(candidates(d.classifyCross(incoming, existing)))
}

// scanRows shards the outer loop of a pairwise scan across Workers. Each
// shard walks its own outer indices and appends only to its own slice; the
// merged result is sorted by pair position, so output does not depend on the
// shard count.
func (d *Detector) scanRows(outer int, row func(i int) []indexedCandidate) []indexedCandidate {
	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > outer {
		workers = outer
	}

	var all []indexedCandidate
	if workers <= 1 {
		for i := 0; i < outer; i++ {
			all = append(all, row(i)...)
		}
	} else {
		shards := make([][]indexedCandidate, workers)
		var g errgroup.Group
		for w := 0; w < workers; w++ {
			w := w
			g.Go(func() error {
				for i := w; i < outer; i += workers {
					shards[w] = append(shards[w], row(i)...)
				}
				return nil
			})
		}
		_ = g.Wait() // shard workers never return errors

		for _, s := range shards {
			all = append(all, s...)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].outer != all[j].outer {
			return all[i].outer < all[j].outer
		}
		return all[i].inner < all[j].inner
	})
	return all
}

func candidates(indexed []indexedCandidate) []model.DuplicateCandidate {
	out := make([]model.DuplicateCandidate, 0, len(indexed))
	for _, ic := range indexed {
		out = append(out, ic.cand)
	}
	return out
}

// Classify evaluates one record pair against the classification rules.
// Returns false when the pair produces no candidate.
func (d *Detector) Classify(a, b model.Record) (model.DuplicateCandidate, bool) {
	if a.Malformed() || b.Malformed() {
		return model.DuplicateCandidate{}, false
	}

	nameA := a.Name()
	nameB := b.Name()

	normA := Normalize(nameA)
	normB := Normalize(nameB)

	// Empty names are never duplicates of each other. This is detector
	// policy, not a scorer property.
	if normA == "" || normB == "" {
		return model.DuplicateCandidate{}, false
	}

	if normA == normB {
		return model.DuplicateCandidate{
			A: a, B: b,
			MatchType: model.MatchExact,
			Score:     1.0,
		}, true
	}

	if sim := Similarity(nameA, nameB); sim > d.thresholds.HighSimilarity {
		return model.DuplicateCandidate{
			A: a, B: b,
			MatchType: model.MatchHighSimilarity,
			Score:     sim,
		}, true
	}

	if LastNameMatch(nameA, nameB) {
		firstA := FirstName(nameA)
		firstB := FirstName(nameB)
		firstSim := Similarity(firstA, firstB)
		if firstSim > d.thresholds.FirstNameSimilarity ||
			prefixVariant(firstA, firstB, d.thresholds.PrefixMatchMinLen) {
			return model.DuplicateCandidate{
				A: a, B: b,
				MatchType: model.MatchSameLastNameVariant,
				Score:     firstSim,
				Note:      fmt.Sprintf("same last name, first names %q / %q", firstA, firstB),
			}, true
		}
	}

	return model.DuplicateCandidate{}, false
}

// sortCandidates ranks candidates by descending score, breaking ties on the
// pair's names to keep output stable.
func sortCandidates(cands []model.DuplicateCandidate) []model.DuplicateCandidate {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		if cands[i].A.Name() != cands[j].A.Name() {
			return cands[i].A.Name() < cands[j].A.Name()
		}
		return cands[i].B.Name() < cands[j].B.Name()
	})
	return cands
}
