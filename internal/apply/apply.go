// Package apply commits a reviewed differential against the record store.
// It is the only component in the pipeline that performs blocking I/O.
package apply

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/honorwall/roster-cli/internal/model"
	"github.com/honorwall/roster-cli/internal/resilience"
	"github.com/honorwall/roster-cli/internal/store"
)

// Options tunes the applier.
type Options struct {
	// BatchSize caps the number of field-set operations per batched write.
	// Default 500 (a common document-store batch limit).
	BatchSize int

	// Concurrency bounds the number of in-flight batch commits. Default 1.
	Concurrency int

	// RatePerSecond throttles batch commits against the store. 0 disables
	// throttling.
	RatePerSecond float64

	// Retry controls per-batch retry for transient store failures.
	Retry resilience.RetryConfig

	// Verify re-reads each patched record after commit and confirms the
	// proposed values landed. Default true via NewApplier.
	Verify bool

	// AcknowledgeConflicts lets a differential that still carries conflicts
	// through: the safe groups are applied, the conflicts never are. Without
	// it such a differential is refused outright.
	AcknowledgeConflicts bool
}

// Applier performs batched, idempotent writes for one differential. Each
// write is a pure field-set, so re-running a failed batch is always safe:
// at-least-once semantics per batch.
type Applier struct {
	store   store.Store
	opts    Options
	limiter *rate.Limiter
}

// NewApplier creates an Applier with defaults applied.
func NewApplier(s store.Store, opts Options) *Applier {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	a := &Applier{store: s, opts: opts}
	if opts.RatePerSecond > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return a
}

// batch is one unit of commit: a set of record patches whose combined
// field-set operation count stays within BatchSize.
type batch struct {
	seq int
	ops []store.PatchOp
}

// Apply commits the differential's update groups and new records.
//
// Conflicts are never applied — a differential that still carries them is
// refused unless the options acknowledge them explicitly, in which case the
// safe groups proceed and the conflicts are logged and left for manual
// resolution. A failed batch is recorded in the result and does not abort
// sibling batches. After the caller's context is cancelled no further
// batches are submitted; in-flight batches run to completion (their writes
// are idempotent, so no rollback is attempted).
func (a *Applier) Apply(ctx context.Context, diff *model.Differential) (*model.ApplyResult, error) {
	log := zap.L().With(zap.String("component", "applier"))
	result := &model.ApplyResult{Verified: a.opts.Verify}

	if len(diff.Conflicts) > 0 {
		if !a.opts.AcknowledgeConflicts {
			return nil, eris.Errorf(
				"apply: differential carries %d unresolved conflicts; acknowledge them to apply the safe groups anyway",
				len(diff.Conflicts))
		}
		log.Warn("differential carries unresolved conflicts; they will not be applied",
			zap.Int("conflicts", len(diff.Conflicts)))
	}

	batches := a.planBatches(diff)

	var mu sync.Mutex
	patched := make(map[string]struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)

	for _, b := range batches {
		b := b
		if ctx.Err() != nil {
			break // stop submitting after cancellation
		}
		g.Go(func() error {
			err := a.commitBatch(gctx, b)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error("batch commit failed",
					zap.Int("batch", b.seq),
					zap.Error(err))
				result.Errors = append(result.Errors, model.ApplyError{
					Batch:   b.seq,
					Message: err.Error(),
				})
				return nil // partial-failure tolerant: siblings continue
			}
			result.BatchesCommitted++
			for _, op := range b.ops {
				patched[op.ID] = struct{}{}
				result.FieldsSet += len(op.Fields)
			}
			return nil
		})
	}
	_ = g.Wait()
	// A chunked record spans several patch ops; count records, not ops.
	result.RecordsPatched = len(patched)

	// Creates are one operation each; a failure skips only that record.
	for _, rec := range diff.NewRecords {
		if ctx.Err() != nil {
			break
		}
		if rec.Malformed() {
			continue
		}
		fields := rec.Fields
		err := resilience.Do(ctx, a.opts.Retry, func(ctx context.Context) error {
			_, err := a.store.CreateRecord(ctx, fields)
			return err
		})
		if err != nil {
			log.Error("create failed", zap.String("name", rec.Name()), zap.Error(err))
			result.Errors = append(result.Errors, model.ApplyError{
				Message: eris.Wrapf(err, "create %q", rec.Name()).Error(),
			})
			continue
		}
		result.RecordsCreated++
	}

	if a.opts.Verify {
		a.verify(ctx, diff, result, log)
	}

	log.Info("apply complete",
		zap.Int("batches", result.BatchesCommitted),
		zap.Int("patched", result.RecordsPatched),
		zap.Int("created", result.RecordsCreated),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

// planBatches turns the differential's update groups into batches. A record
// group stays intact inside a single batch; batches are cut when the
// accumulated field-set count would exceed BatchSize. The one exception is a
// group that alone exceeds BatchSize: its fields are chunked across several
// patches, which compose because each patch is a pure field-set.
func (a *Applier) planBatches(diff *model.Differential) []batch {
	var batches []batch
	var cur batch
	curOps := 0

	flush := func() {
		if len(cur.ops) > 0 {
			cur.seq = len(batches)
			batches = append(batches, cur)
			cur = batch{}
			curOps = 0
		}
	}

	for _, id := range diff.UpdateIDs() {
		updates := diff.Updates[id]
		fields := make(map[string]string, len(updates))
		for _, u := range updates {
			if u.Classification == model.Conflict {
				continue // defense in depth; the builder never puts these here
			}
			fields[u.Field] = u.ProposedValue
		}
		if len(fields) == 0 {
			continue
		}

		if len(fields) > a.opts.BatchSize {
			flush()
			for _, chunk := range chunkFields(fields, a.opts.BatchSize) {
				cur.ops = append(cur.ops, store.PatchOp{ID: id, Fields: chunk})
				flush()
			}
			continue
		}

		if curOps+len(fields) > a.opts.BatchSize {
			flush()
		}
		cur.ops = append(cur.ops, store.PatchOp{ID: id, Fields: fields})
		curOps += len(fields)
	}
	flush()

	return batches
}

// chunkFields splits one field map into maps of at most size entries, in
// sorted key order so planning is deterministic.
func chunkFields(fields map[string]string, size int) []map[string]string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var chunks []map[string]string
	for len(names) > 0 {
		n := size
		if n > len(names) {
			n = len(names)
		}
		chunk := make(map[string]string, n)
		for _, name := range names[:n] {
			chunk[name] = fields[name]
		}
		chunks = append(chunks, chunk)
		names = names[n:]
	}
	return chunks
}

func (a *Applier) commitBatch(ctx context.Context, b batch) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "apply: rate limit wait")
		}
	}
	return resilience.Do(ctx, a.opts.Retry, func(ctx context.Context) error {
		return a.store.BatchPatch(ctx, b.ops)
	})
}

// verify re-reads every patched record and confirms the proposed values are
// present. A mismatch marks the result unverified and records an error; it
// does not attempt repair.
func (a *Applier) verify(ctx context.Context, diff *model.Differential, result *model.ApplyResult, log *zap.Logger) {
	for _, id := range diff.UpdateIDs() {
		if ctx.Err() != nil {
			return
		}
		rec, err := a.store.GetRecord(ctx, id)
		if err != nil {
			result.Verified = false
			result.Errors = append(result.Errors, model.ApplyError{
				RecordID: id,
				Message:  eris.Wrap(err, "verify read").Error(),
			})
			continue
		}
		if rec == nil {
			result.Verified = false
			result.Errors = append(result.Errors, model.ApplyError{
				RecordID: id,
				Message:  "verify: record missing after patch",
			})
			continue
		}
		for _, u := range diff.Updates[id] {
			if got := rec.Fields[u.Field]; got != u.ProposedValue {
				result.Verified = false
				log.Warn("verification mismatch",
					zap.String("record", id),
					zap.String("field", u.Field),
					zap.String("want", u.ProposedValue),
					zap.String("got", got))
				result.Errors = append(result.Errors, model.ApplyError{
					RecordID: id,
					Message:  "verify: field " + u.Field + " not set to proposed value",
				})
			}
		}
	}
}
