package core

import (
	"github.com/JonMunkholm/trasporti/internal/schema"
)

// Record is one normalized row keyed by field name.
type Record map[string]any

// Transformer maps raw rows onto a column list. Every record it returns
// has exactly one key per column.
type Transformer struct {
	cols []schema.Column
}

// NewTransformer builds a Transformer for cols.
func NewTransformer(cols []schema.Column) *Transformer {
	return &Transformer{cols: cols}
}

// Transform converts one row keyed by raw header. It never fails; the
// returned outcomes are indexed like the columns.
func (t *Transformer) Transform(row map[string]string) (Record, []Outcome) {
	rec := make(Record, len(t.cols))
	outcomes := make([]Outcome, len(t.cols))
	for i, col := range t.cols {
		c := Coerce(row[col.Header], col.Type)
		rec[col.Field] = c.Value
		outcomes[i] = c.Outcome
	}
	return rec, outcomes
}

// TransformReport counts fallbacks per field over a whole run. Text
// fields never appear.
type TransformReport struct {
	Rows    int
	Empty   map[string]int
	Invalid map[string]int
}

// Defaulted returns the total number of fallback values used.
func (r TransformReport) Defaulted() int {
	n := 0
	for _, c := range r.Empty {
		n += c
	}
	for _, c := range r.Invalid {
		n += c
	}
	return n
}

// TransformAll converts every row and tallies fallbacks.
func (t *Transformer) TransformAll(rows []map[string]string) ([]Record, TransformReport) {
	report := TransformReport{
		Rows:    len(rows),
		Empty:   make(map[string]int),
		Invalid: make(map[string]int),
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, outcomes := t.Transform(row)
		for i, o := range outcomes {
			field := t.cols[i].Field
			switch o {
			case DefaultedEmpty:
				report.Empty[field]++
			case DefaultedInvalid:
				report.Invalid[field]++
			}
		}
		records = append(records, rec)
	}
	return records, report
}
