package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestLoadCSV(t *testing.T) {
	input := `Name,Rank,Unit
John Smith,SGT,1st Infantry Division
Mary Jones,CPL,
`
	records, err := LoadCSV(context.Background(), strings.NewReader(input), Mapping{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "John Smith", records[0].Fields["name"])
	assert.Equal(t, "SGT", records[0].Fields["rank"])
	assert.Equal(t, "1st Infantry Division", records[0].Fields["unit"])

	// Blank cells do not become fields.
	_, ok := records[1].Fields["unit"]
	assert.False(t, ok)
}

func TestLoadCSV_Mapping(t *testing.T) {
	input := `Full Name,Grade
John Smith,SGT
`
	mapping := Mapping{Columns: map[string]string{
		"full name": "name",
		"Grade":     "rank",
	}}
	records, err := LoadCSV(context.Background(), strings.NewReader(input), mapping)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "John Smith", records[0].Fields["name"])
	assert.Equal(t, "SGT", records[0].Fields["rank"])
}

func TestLoadCSV_EmptyRowsDropped(t *testing.T) {
	input := "Name,Rank\nJohn Smith,SGT\n,\n  ,  \n"
	records, err := LoadCSV(context.Background(), strings.NewReader(input), Mapping{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLoadCSV_MissingHeader(t *testing.T) {
	_, err := LoadCSV(context.Background(), strings.NewReader(""), Mapping{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing header row")
}

func TestLoadCSV_RaggedRows(t *testing.T) {
	input := "Name,Rank,Unit\nJohn Smith,SGT\n"
	records, err := LoadCSV(context.Background(), strings.NewReader(input), Mapping{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "SGT", records[0].Fields["rank"])
	_, ok := records[0].Fields["unit"]
	assert.False(t, ok)
}

func TestLoadJSON_RecordForm(t *testing.T) {
	input := `[{"id":"r1","fields":{"name":"John Smith","rank":"SGT"}}]`
	records, err := LoadJSON(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0].ID)
	assert.Equal(t, "John Smith", records[0].Fields["name"])
}

func TestLoadJSON_BareFieldMapForm(t *testing.T) {
	input := `[{"name":"John Smith","rank":"SGT"},{"name":"Mary Jones"}]`
	records, err := LoadJSON(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "John Smith", records[0].Fields["name"])
	assert.Empty(t, records[0].ID)
}

func TestLoadJSON_NotAnArray(t *testing.T) {
	_, err := LoadJSON(context.Background(), strings.NewReader(`{"name":"x"}`))
	assert.Error(t, err)
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	writeTestWorkbook(t, path)

	records, err := LoadXLSX(path, Mapping{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "John Smith", records[0].Fields["name"])
	assert.Equal(t, "CPL", records[1].Fields["rank"])
}

func TestLoad_InfersFormatFromExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.csv")
	require.NoError(t, os.WriteFile(path, []byte("Name\nJohn Smith\n"), 0o644))

	records, err := Load(context.Background(), path, "", Mapping{})
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := Load(context.Background(), "roster.txt", "", Mapping{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func writeTestWorkbook(t *testing.T, path string) {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Roster")
	require.NoError(t, err)

	for _, row := range [][]string{
		{"Name", "Rank"},
		{"John Smith", "SGT"},
		{"Mary Jones", "CPL"},
	} {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().SetString(cell)
		}
	}
	require.NoError(t, f.Save(path))
}
