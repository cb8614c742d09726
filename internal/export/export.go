// Package export serializes differentials for human review. The exported
// file is the contract between a reconciliation run and its approval: apply
// consumes exactly what review saw.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/honorwall/roster-cli/internal/model"
)

// WriteJSON writes the differential as indented JSON.
func WriteJSON(w io.Writer, diff *model.Differential) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(diff), "export: encode json")
}

// WriteYAML writes the differential as YAML.
func WriteYAML(w io.Writer, diff *model.Differential) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return eris.Wrap(enc.Encode(diff), "export: encode yaml")
}

// WriteFile writes the differential to path, choosing the format from the
// extension (.yaml/.yml for YAML, anything else JSON).
func WriteFile(path string, diff *model.Differential) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return WriteYAML(f, diff)
	default:
		return WriteJSON(f, diff)
	}
}

// ReadFile loads a previously exported differential.
func ReadFile(path string) (*model.Differential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: read %s", path)
	}

	diff := &model.Differential{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, diff)
	default:
		err = json.Unmarshal(data, diff)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "export: decode %s", path)
	}
	return diff, nil
}

// Summary renders a compact human-readable overview for terminal review.
func Summary(diff *model.Differential) string {
	var b strings.Builder

	fmt.Fprintf(&b, "update groups: %d   new records: %d   conflicts: %d   review pairs: %d\n",
		len(diff.Updates), len(diff.NewRecords), len(diff.Conflicts), len(diff.ReviewPairs))

	for _, id := range diff.UpdateIDs() {
		fmt.Fprintf(&b, "\n  %s\n", id)
		for _, u := range diff.Updates[id] {
			switch u.Classification {
			case model.SafeAddition:
				fmt.Fprintf(&b, "    + %-20s %q\n", u.Field, u.ProposedValue)
			case model.FormattingOnly:
				fmt.Fprintf(&b, "    ~ %-20s %q -> %q\n", u.Field, u.CurrentValue, u.ProposedValue)
			}
		}
	}

	if len(diff.NewRecords) > 0 {
		b.WriteString("\nnew records:\n")
		for _, r := range diff.NewRecords {
			fmt.Fprintf(&b, "  * %s\n", r.Name())
		}
	}

	if len(diff.Conflicts) > 0 {
		b.WriteString("\nconflicts (manual resolution required):\n")
		for _, c := range diff.Conflicts {
			if c.Note != "" {
				fmt.Fprintf(&b, "  ! %s\n", c.Note)
				continue
			}
			fmt.Fprintf(&b, "  ! %s.%s: %q vs incoming %q\n",
				c.RecordID, c.Field, c.CurrentValue, c.ProposedValue)
		}
	}

	if len(diff.ReviewPairs) > 0 {
		b.WriteString("\npossible name variants (review):\n")
		for _, p := range diff.ReviewPairs {
			fmt.Fprintf(&b, "  ? %q / %q (score %.2f)\n", p.A.Name(), p.B.Name(), p.Score)
		}
	}

	if len(diff.SkippedRecords) > 0 {
		fmt.Fprintf(&b, "\nskipped malformed records: %d\n", len(diff.SkippedRecords))
	}

	return b.String()
}
