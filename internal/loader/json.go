package loader

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/honorwall/roster-cli/internal/model"
)

// LoadJSON decodes a JSON array of records, streaming element by element so
// large exports do not need to fit in a single decode. Input is either
// [{"fields": {...}}, ...] (a prior export) or a bare array of field maps.
func LoadJSON(ctx context.Context, r io.Reader) ([]model.Record, error) {
	decoder := json.NewDecoder(r)

	tok, err := decoder.Token()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "json: read opening token")
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '[' {
		return nil, eris.Errorf("json: expected '[', got %v", tok)
	}

	var records []model.Record
	for decoder.More() {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "json: context cancelled")
		}

		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			return nil, eris.Wrap(err, "json: decode element")
		}

		var rec model.Record
		if err := json.Unmarshal(raw, &rec); err != nil || rec.Fields == nil {
			// Bare field map form.
			var fields map[string]string
			if err := json.Unmarshal(raw, &fields); err != nil {
				return nil, eris.Wrap(err, "json: element is neither a record nor a field map")
			}
			rec = model.Record{Fields: fields}
		}
		records = append(records, rec)
	}

	return records, nil
}
