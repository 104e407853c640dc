package core

// convert.go coerces raw spreadsheet cells to the inferred column types.
//
// Coercion never fails. Each call reports whether the value was parsed or
// a fallback was applied:
//   - Number: unparseable or empty cells become 0
//   - Date: unparseable or empty cells become nil (stored as null)
//   - Text: the cell is kept verbatim
//
// Stored records already follow the 0/null split, so both fallbacks stay.

import (
	"github.com/JonMunkholm/trasporti/internal/schema"
)

// Outcome tells how a coerced value was obtained.
type Outcome int

const (
	// Parsed means the raw value was converted as-is.
	Parsed Outcome = iota
	// DefaultedEmpty means the cell was blank and the fallback was used.
	DefaultedEmpty
	// DefaultedInvalid means the cell did not parse and the fallback was used.
	DefaultedInvalid
)

func (o Outcome) String() string {
	switch o {
	case DefaultedEmpty:
		return "defaulted_empty"
	case DefaultedInvalid:
		return "defaulted_invalid"
	default:
		return "parsed"
	}
}

// Coerced is one converted cell.
type Coerced struct {
	Value   any // string, float64, time.Time or nil
	Outcome Outcome
}

// Defaulted reports whether the fallback value was used.
func (c Coerced) Defaulted() bool {
	return c.Outcome != Parsed
}

// CoerceText keeps the cell verbatim.
func CoerceText(raw string) Coerced {
	return Coerced{Value: raw, Outcome: Parsed}
}

// CoerceNumber parses a number, falling back to 0.
func CoerceNumber(raw string) Coerced {
	if isBlank(raw) {
		return Coerced{Value: float64(0), Outcome: DefaultedEmpty}
	}
	if f, ok := schema.ParseNumber(raw); ok {
		return Coerced{Value: f, Outcome: Parsed}
	}
	return Coerced{Value: float64(0), Outcome: DefaultedInvalid}
}

// CoerceDate parses a calendar date, falling back to nil.
func CoerceDate(raw string) Coerced {
	if isBlank(raw) {
		return Coerced{Value: nil, Outcome: DefaultedEmpty}
	}
	if t, ok := schema.ParseDate(raw); ok {
		return Coerced{Value: t, Outcome: Parsed}
	}
	return Coerced{Value: nil, Outcome: DefaultedInvalid}
}

// Coerce dispatches on the column type.
func Coerce(raw string, t schema.FieldType) Coerced {
	switch t {
	case schema.TypeNumber:
		return CoerceNumber(raw)
	case schema.TypeDate:
		return CoerceDate(raw)
	default:
		return CoerceText(raw)
	}
}
