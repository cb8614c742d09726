package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honorwall/roster-cli/internal/model"
)

func sampleDiff() *model.Differential {
	return &model.Differential{
		Updates: map[string][]model.FieldUpdate{
			"ex1": {
				{RecordID: "ex1", Field: "unit", ProposedValue: "1st Infantry Division", Classification: model.SafeAddition},
				{RecordID: "ex1", Field: "name", CurrentValue: "John  Smith", ProposedValue: "John Smith", Classification: model.FormattingOnly},
			},
		},
		NewRecords: []model.Record{
			{Fields: map[string]string{"name": "Pat Riley"}},
		},
		Conflicts: []model.FieldUpdate{
			{RecordID: "ex2", Field: "rank", CurrentValue: "SGT", ProposedValue: "CPL", Classification: model.Conflict},
		},
	}
}

func TestWriteReadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diff.json")
	require.NoError(t, WriteFile(path, sampleDiff()))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleDiff(), got)
}

func TestWriteReadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diff.yaml")
	require.NoError(t, WriteFile(path, sampleDiff()))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleDiff(), got)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	out := Summary(sampleDiff())

	assert.Contains(t, out, "update groups: 1")
	assert.Contains(t, out, `+ unit`)
	assert.Contains(t, out, `~ name`)
	assert.Contains(t, out, "* Pat Riley")
	assert.Contains(t, out, `! ex2.rank: "SGT" vs incoming "CPL"`)
}

func TestSummary_EmptyDifferential(t *testing.T) {
	out := Summary(&model.Differential{})
	assert.Contains(t, out, "update groups: 0")
	assert.NotContains(t, out, "conflicts (manual resolution required)")
}
