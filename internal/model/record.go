// Package model defines the value types flowing through the reconciliation
// pipeline: records, duplicate candidates, field updates, and differentials.
package model

import "sort"

// Record is one person-like entity (veteran/alumnus) under reconciliation.
// A Record with an ID came from the authoritative store; one without an ID
// is an incoming candidate from a freshly loaded dataset.
type Record struct {
	ID     string            `json:"id,omitempty" yaml:"id,omitempty"`
	Fields map[string]string `json:"fields" yaml:"fields"`
}

// Authoritative reports whether the record already exists in the store.
func (r Record) Authoritative() bool {
	return r.ID != ""
}

// Name returns the record's display name, or "" when absent.
func (r Record) Name() string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields["name"]
}

// Field returns the value for the given field name, or "" when absent.
// Absent and present-but-blank are distinguished by the second return.
func (r Record) Field(name string) (string, bool) {
	if r.Fields == nil {
		return "", false
	}
	v, ok := r.Fields[name]
	return v, ok
}

// FieldNames returns the record's field names in sorted order. Map iteration
// order is unspecified in Go, so every walk over Fields goes through this to
// keep pipeline output deterministic.
func (r Record) FieldNames() []string {
	if r.Fields == nil {
		return nil
	}
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Malformed reports whether the record lacks a usable fields map.
// Malformed records are skipped during matching rather than failing the run.
func (r Record) Malformed() bool {
	return r.Fields == nil
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := Record{ID: r.ID}
	if r.Fields != nil {
		out.Fields = make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return out
}
