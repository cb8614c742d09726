// Package loader turns incoming roster datasets (CSV, XLSX, JSON exports,
// local or fetched over HTTP/FTP) into record lists for reconciliation.
// Parsing stops here: the reconciliation core only ever sees []model.Record.
package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/honorwall/roster-cli/internal/model"
)

// Mapping maps dataset column headers to record field names. Headers are
// matched case-insensitively after trimming. Columns without a mapping entry
// keep their header (lower-cased) as the field name, so a dataset with sane
// headers needs no mapping at all.
type Mapping struct {
	Columns map[string]string `yaml:"columns" mapstructure:"columns"`
}

// fieldFor resolves a column header to a record field name.
func (m Mapping) fieldFor(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	for col, field := range m.Columns {
		if strings.EqualFold(col, header) {
			return field
		}
	}
	return strings.ToLower(header)
}

// Load reads an incoming dataset from path. Format is "csv", "xlsx", or
// "json"; when empty it is inferred from the file extension.
func Load(ctx context.Context, path, format string, mapping Mapping) ([]model.Record, error) {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}

	switch strings.ToLower(format) {
	case "csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: open %s", path)
		}
		defer f.Close()
		return LoadCSV(ctx, f, mapping)
	case "xlsx":
		return LoadXLSX(path, mapping)
	case "json":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: open %s", path)
		}
		defer f.Close()
		return LoadJSON(ctx, f)
	default:
		return nil, eris.Errorf("loader: unsupported format %q", format)
	}
}

// rowsToRecords assembles records from a header row and data rows. Rows with
// fewer cells than headers are padded with blanks; completely empty rows are
// dropped. Cells are trimmed; blank cells do not produce field entries, so
// absent and present-but-blank stay distinguishable downstream.
func rowsToRecords(header []string, rows [][]string, mapping Mapping) []model.Record {
	fields := make([]string, len(header))
	for i, h := range header {
		fields[i] = mapping.fieldFor(h)
	}

	var records []model.Record
	for _, row := range rows {
		rec := model.Record{Fields: make(map[string]string)}
		empty := true
		for i, field := range fields {
			if field == "" || i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v == "" {
				continue
			}
			rec.Fields[field] = v
			empty = false
		}
		if !empty {
			records = append(records, rec)
		}
	}
	return records
}

// drainErr consumes a fetcher-style error channel after the row channel has
// been fully read.
func drainErr(errCh <-chan error) error {
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}
