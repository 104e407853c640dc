// Package schema derives the persistent shape of a Trasporto record from a
// spreadsheet header row.
//
// The pipeline is header-driven: every allow-listed column label is turned
// into a safe field name ([NormalizeHeader]), its sampled values decide the
// field type ([Inferrer.Infer]) and the resulting [Column] list becomes a
// versioned [Descriptor] that the CRUD layer reads to shape records.
package schema

import (
	"encoding/json"
	"fmt"
)

// FieldType is the inferred storage type of a column.
type FieldType int

const (
	TypeText FieldType = iota
	TypeNumber
	TypeDate
)

// String returns the lowercase type name used in artifacts and JSON.
func (t FieldType) String() string {
	switch t {
	case TypeNumber:
		return "number"
	case TypeDate:
		return "date"
	default:
		return "text"
	}
}

// ParseFieldType is the inverse of [FieldType.String].
func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "text":
		return TypeText, nil
	case "number":
		return TypeNumber, nil
	case "date":
		return TypeDate, nil
	default:
		return TypeText, fmt.Errorf("unknown field type %q", s)
	}
}

func (t FieldType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *FieldType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseFieldType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Column is the descriptor of one imported spreadsheet column.
type Column struct {
	Header string    `json:"header" bson:"header"`
	Field  string    `json:"field" bson:"field"`
	Type   FieldType `json:"type" bson:"type"`
}

// Implicit fields exist on every record shape but never come from the sheet.
const (
	FieldNote     = "note"
	FieldRowColor = "rowColor"
)

// Field is one entry of the full record shape (imported or implicit).
type Field struct {
	Name    string    `json:"name"`
	Type    FieldType `json:"type"`
	Header  string    `json:"header,omitempty"`
	Default *string   `json:"default,omitempty"`
}
