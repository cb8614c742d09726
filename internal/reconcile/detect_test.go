package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honorwall/roster-cli/internal/model"
)

func rec(id, name string) model.Record {
	return model.Record{ID: id, Fields: map[string]string{"name": name}}
}

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(DefaultThresholds())
	require.NoError(t, err)
	return d
}

func TestNewDetector_RejectsInvalidThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.HighSimilarity = 2.0
	_, err := NewDetector(th)
	assert.Error(t, err)
}

func TestDetector_SkipsEmptyNames(t *testing.T) {
	d := newTestDetector(t)
	cands := d.FindDuplicates([]model.Record{
		rec("a", ""),
		rec("b", ""),
		rec("c", "   "),
	})
	assert.Empty(t, cands)
}

func TestDetector_ExactMatch(t *testing.T) {
	d := newTestDetector(t)
	cands := d.FindDuplicates([]model.Record{
		rec("a", "John Q. Smith"),
		rec("b", "john  q smith"),
	})
	require.Len(t, cands, 1)
	assert.Equal(t, model.MatchExact, cands[0].MatchType)
	assert.Equal(t, 1.0, cands[0].Score)
}

func TestDetector_HighSimilarity(t *testing.T) {
	d := newTestDetector(t)
	cands := d.FindDuplicates([]model.Record{
		rec("a", "Jonathan Smithson"),
		rec("b", "Jonathan Smithsen"),
	})
	require.Len(t, cands, 1)
	assert.Equal(t, model.MatchHighSimilarity, cands[0].MatchType)
	assert.Greater(t, cands[0].Score, DefaultHighSimilarity)
	assert.Less(t, cands[0].Score, 1.0)
}

func TestDetector_SameLastNameVariant(t *testing.T) {
	d := newTestDetector(t)
	cands := d.FindDuplicates([]model.Record{
		rec("a", "Rob Wilkins"),
		rec("b", "Robert Wilkins"),
	})
	require.Len(t, cands, 1)
	assert.Equal(t, model.MatchSameLastNameVariant, cands[0].MatchType)
	assert.Contains(t, cands[0].Note, "same last name")
}

func TestDetector_ExactWinsOverVariant(t *testing.T) {
	d := newTestDetector(t)
	c, ok := d.Classify(rec("a", "John Smith"), rec("b", "JOHN SMITH"))
	require.True(t, ok)
	assert.Equal(t, model.MatchExact, c.MatchType)
}

func TestDetector_UnrelatedNamesNoCandidate(t *testing.T) {
	d := newTestDetector(t)
	_, ok := d.Classify(rec("a", "John Smith"), rec("b", "Mary Jones"))
	assert.False(t, ok)
}

func TestDetector_MalformedRecordsSkipped(t *testing.T) {
	d := newTestDetector(t)
	_, ok := d.Classify(model.Record{ID: "a"}, rec("b", "John Smith"))
	assert.False(t, ok)
}

func TestDetector_CrossScan(t *testing.T) {
	d := newTestDetector(t)
	cands := d.FindCrossDuplicates(
		[]model.Record{rec("in1", "Jane Doe"), rec("in2", "Pat Riley")},
		[]model.Record{rec("ex1", "Jane Doe"), rec("ex2", "Sam Hill")},
	)
	require.Len(t, cands, 1)
	assert.Equal(t, "in1", cands[0].A.ID)
	assert.Equal(t, "ex1", cands[0].B.ID)
}

func TestDetector_DeterministicAcrossWorkers(t *testing.T) {
	records := []model.Record{
		rec("1", "John Smith"),
		rec("2", "Jon Smith"),
		rec("3", "Rob Wilkins"),
		rec("4", "Robert Wilkins"),
		rec("5", "Mary Jones"),
		rec("6", "mary jones"),
		rec("7", "Jose Garcia"),
		rec("8", "José García"),
	}

	d := newTestDetector(t)
	serial := d.FindDuplicates(records)

	for _, workers := range []int{2, 4, 8} {
		d := newTestDetector(t)
		d.Workers = workers
		assert.Equal(t, serial, d.FindDuplicates(records), "workers=%d", workers)
	}
}

func TestDetector_RepeatedRunsStable(t *testing.T) {
	records := []model.Record{
		rec("1", "John Smith"),
		rec("2", "Jon Smith"),
		rec("3", "John Smyth"),
	}
	d := newTestDetector(t)
	first := d.FindDuplicates(records)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, d.FindDuplicates(records))
	}
}
