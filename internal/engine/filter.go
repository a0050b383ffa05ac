// Package engine implements the filter-and-aggregate core: pure, total
// functions over tabular datasets. Nothing in this package returns an error;
// missing columns and empty inputs degrade to skipped predicates and empty
// results, because the three record families carry different schemas and the
// dashboard must serve all of them with the same code.
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/nelhattab/electratrack/internal/tabular"
)

// Any is the sentinel a categorical selector sends when no constraint is
// chosen. It is equivalent to leaving the field empty.
const Any = "Tous"

// MatchKind selects how a field predicate compares cells to its value.
type MatchKind uint8

const (
	// MatchContains keeps rows whose cell, coerced to text, contains the
	// value as a case-insensitive substring. Null cells never match.
	MatchContains MatchKind = iota
	// MatchExact keeps rows whose cell text equals the value exactly.
	MatchExact
)

// Field is one named predicate of a filter spec.
type Field struct {
	Column string    `json:"column"`
	Kind   MatchKind `json:"kind"`
	Value  string    `json:"value"`
}

// active reports whether the field constrains anything.
func (f Field) active() bool {
	return strings.TrimSpace(f.Value) != "" && f.Value != Any
}

// FilterSpec is the full set of predicates for one screen invocation.
// Predicates combine as a conjunction. The zero value matches everything.
type FilterSpec struct {
	Fields []Field `json:"fields"`
}

// Add appends a field predicate and returns the spec for chaining.
func (s FilterSpec) Add(column string, kind MatchKind, value string) FilterSpec {
	s.Fields = append(s.Fields, Field{Column: column, Kind: kind, Value: value})
	return s
}

// Empty reports whether no predicate is active.
func (s FilterSpec) Empty() bool {
	for _, f := range s.Fields {
		if f.active() {
			return false
		}
	}
	return true
}

// Key returns a content hash of the active predicates, suitable for
// memoizing filter results together with the dataset version.
func (s FilterSpec) Key() string {
	h := sha256.New()
	for _, f := range s.Fields {
		if !f.active() {
			continue
		}
		h.Write([]byte(f.Column))
		h.Write([]byte{0, byte(f.Kind), 0})
		h.Write([]byte(f.Value))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Filter applies the spec to the dataset and returns the matching rows as a
// new dataset, preserving input order. Predicates whose column is absent are
// skipped. The result is always a fresh dataset, even for an empty spec, so
// callers can rely on version-tagged identity rather than pointer identity.
func Filter(d *tabular.Dataset, spec FilterSpec) *tabular.Dataset {
	type pred struct {
		idx   int
		kind  MatchKind
		value string
	}
	var preds []pred
	for _, f := range spec.Fields {
		if !f.active() {
			continue
		}
		idx, ok := d.ColumnIndex(f.Column)
		if !ok {
			continue
		}
		preds = append(preds, pred{idx: idx, kind: f.Kind, value: f.Value})
	}

	if len(preds) == 0 {
		return d.WithRows(append([]tabular.Row(nil), d.Rows...))
	}

	var kept []tabular.Row
	for _, row := range d.Rows {
		match := true
		for _, p := range preds {
			if p.idx >= len(row) {
				match = false
				break
			}
			text, ok := row[p.idx].AsText()
			if !ok {
				match = false
				break
			}
			switch p.kind {
			case MatchExact:
				if text != p.value {
					match = false
				}
			default:
				if !strings.Contains(strings.ToLower(text), strings.ToLower(p.value)) {
					match = false
				}
			}
			if !match {
				break
			}
		}
		if match {
			kept = append(kept, row)
		}
	}
	return d.WithRows(kept)
}
