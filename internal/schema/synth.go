package schema

import "strings"

// DefaultAllowedHeaders is the set of recognized source column labels.
var DefaultAllowedHeaders = []string{
	"#",
	"CLIENTE",
	"DATA",
	"MODELLO",
	"TARGA",
	"REGIONE CARICO",
	"CARICO",
	"SCARICO",
	"NOTE",
	"PAGAMENTO",
	"AUTISTA CARICO",
	"AUTISTA SCARICO",
	"INDIRIZZO RITIRO",
	"n° FATTURA",
	"DEPOSITO",
}

// Synthesizer turns a sheet header row plus sample rows into Column
// descriptors.
type Synthesizer struct {
	allowed  map[string]struct{}
	inferrer *Inferrer
}

// NewSynthesizer builds a Synthesizer for the given allow-list.
func NewSynthesizer(allowed []string, inferrer *Inferrer) *Synthesizer {
	set := make(map[string]struct{}, len(allowed))
	for _, h := range allowed {
		set[h] = struct{}{}
	}
	return &Synthesizer{allowed: set, inferrer: inferrer}
}

// FilterHeaders keeps the allow-listed sheet headers in sheet order. Header
// cells are compared after trimming surrounding whitespace; repeated
// headers keep their first occurrence.
func (s *Synthesizer) FilterHeaders(sheetHeaders []string) []string {
	seen := make(map[string]struct{}, len(sheetHeaders))
	var out []string
	for _, h := range sheetHeaders {
		h = strings.TrimSpace(h)
		if _, ok := s.allowed[h]; !ok {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// Synthesize builds one Column per header, in header order.
//
// rows are keyed by header; only the first SampleSize rows are inspected.
// A header whose normalized name collides with an earlier one is left out
// and returned in dropped so record field sets stay unique.
func (s *Synthesizer) Synthesize(headers []string, rows []map[string]string) (cols []Column, dropped []string) {
	sample := rows
	if n := s.inferrer.SampleSize(); len(sample) > n {
		sample = sample[:n]
	}

	fields := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		field := NormalizeHeader(h)
		if _, taken := fields[field]; taken {
			dropped = append(dropped, h)
			continue
		}
		fields[field] = struct{}{}

		values := make([]string, len(sample))
		for i, row := range sample {
			values[i] = row[h]
		}

		cols = append(cols, Column{
			Header: h,
			Field:  field,
			Type:   s.inferrer.Infer(h, values),
		})
	}
	return cols, dropped
}
