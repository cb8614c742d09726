package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honorwall/roster-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLite_RecordRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRecord(ctx, map[string]string{"name": "John Smith", "rank": "SGT"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := s.GetRecord(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "John Smith", rec.Fields["name"])
	assert.Equal(t, "SGT", rec.Fields["rank"])
}

func TestSQLite_GetRecordMissing(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.GetRecord(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLite_ListRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateRecord(ctx, map[string]string{"name": "John Smith"})
	require.NoError(t, err)
	_, err = s.CreateRecord(ctx, map[string]string{"name": "Mary Jones"})
	require.NoError(t, err)

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSQLite_BatchPatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.CreateRecord(ctx, map[string]string{"name": "John Smith", "unit": ""})
	require.NoError(t, err)
	id2, err := s.CreateRecord(ctx, map[string]string{"name": "Mary Jones"})
	require.NoError(t, err)

	err = s.BatchPatch(ctx, []PatchOp{
		{ID: id1, Fields: map[string]string{"unit": "1st Infantry Division"}},
		{ID: id2, Fields: map[string]string{"rank": "CPL"}},
	})
	require.NoError(t, err)

	rec, err := s.GetRecord(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "1st Infantry Division", rec.Fields["unit"])
	assert.Equal(t, "John Smith", rec.Fields["name"], "untouched fields survive a patch")

	rec, err = s.GetRecord(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, "CPL", rec.Fields["rank"])
}

func TestSQLite_BatchPatchMissingTargetRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRecord(ctx, map[string]string{"name": "John Smith"})
	require.NoError(t, err)

	err = s.BatchPatch(ctx, []PatchOp{
		{ID: id, Fields: map[string]string{"rank": "SGT"}},
		{ID: "missing", Fields: map[string]string{"rank": "CPL"}},
	})
	require.Error(t, err)

	rec, err := s.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, rec.Fields["rank"], "failed batch leaves no partial writes")
}

func TestSQLite_BatchPatchIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRecord(ctx, map[string]string{"name": "John Smith"})
	require.NoError(t, err)

	ops := []PatchOp{{ID: id, Fields: map[string]string{"rank": "SGT"}}}
	require.NoError(t, s.BatchPatch(ctx, ops))
	require.NoError(t, s.BatchPatch(ctx, ops))

	rec, err := s.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "SGT", rec.Fields["rank"])
}

func TestSQLite_RunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "roster.csv")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	diff := &model.Differential{
		Updates: map[string][]model.FieldUpdate{
			"ex1": {{RecordID: "ex1", Field: "rank", ProposedValue: "SGT", Classification: model.SafeAddition}},
		},
	}
	require.NoError(t, s.SaveDifferential(ctx, run.ID, diff))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPendingReview, got.Status)
	require.NotNil(t, got.Differential)
	assert.Equal(t, "SGT", got.Differential.Updates["ex1"][0].ProposedValue)

	result := &model.ApplyResult{RecordsPatched: 1, BatchesCommitted: 1, FieldsSet: 1}
	require.NoError(t, s.SaveApplyResult(ctx, run.ID, result))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusApplied, got.Status)
	require.NotNil(t, got.ApplyResult)
	assert.Equal(t, 1, got.ApplyResult.RecordsPatched)
}

func TestSQLite_SaveApplyResultFailedStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "roster.csv")
	require.NoError(t, err)

	result := &model.ApplyResult{Errors: []model.ApplyError{{Batch: 0, Message: "boom"}}}
	require.NoError(t, s.SaveApplyResult(ctx, run.ID, result))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
}

func TestSQLite_ListRunsStatusFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r1, err := s.CreateRun(ctx, "a.csv")
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "b.csv")
	require.NoError(t, err)

	require.NoError(t, s.UpdateRunStatus(ctx, r1.ID, model.RunStatusRejected))

	rejected, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusRejected})
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, r1.ID, rejected[0].ID)

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_UpdateRunStatusMissing(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateRunStatus(context.Background(), "nope", model.RunStatusApplied)
	assert.Error(t, err)
}
