package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ModelName is the registry key of the Trasporto record shape.
const ModelName = "Trasporto"

// Descriptor is one stored version of the record shape.
type Descriptor struct {
	Name        string    `json:"name" bson:"name"`
	Version     int       `json:"version" bson:"version"`
	Source      string    `json:"source,omitempty" bson:"source,omitempty"`
	GeneratedAt time.Time `json:"generatedAt" bson:"generatedAt"`
	Columns     []Column  `json:"columns" bson:"columns"`
}

// NewDescriptor wraps a column list as the given version.
func NewDescriptor(version int, source string, cols []Column, at time.Time) Descriptor {
	return Descriptor{
		Name:        ModelName,
		Version:     version,
		Source:      source,
		GeneratedAt: at.UTC(),
		Columns:     cols,
	}
}

// Fields returns the full record shape: imported columns followed by the
// implicit note and rowColor fields. A column already named "note" (from a
// NOTE header) is not repeated.
func (d Descriptor) Fields() []Field {
	fields := make([]Field, 0, len(d.Columns)+2)
	for _, c := range d.Columns {
		fields = append(fields, Field{Name: c.Field, Type: c.Type, Header: c.Header})
	}
	if _, ok := d.Column(FieldNote); !ok {
		fields = append(fields, Field{Name: FieldNote, Type: TypeText})
	}
	if _, ok := d.Column(FieldRowColor); !ok {
		empty := ""
		fields = append(fields, Field{Name: FieldRowColor, Type: TypeText, Default: &empty})
	}
	return fields
}

// Field looks up a field of the full shape by name.
func (d Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields() {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Column looks up an imported column by field name.
func (d Descriptor) Column(field string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Field == field {
			return c, true
		}
	}
	return Column{}, false
}

// artifact is the on-disk schema definition. It holds no timestamps or
// versions so identical columns always produce identical bytes.
type artifact struct {
	Model      string  `json:"model"`
	Timestamps bool    `json:"timestamps"`
	Fields     []Field `json:"fields"`
}

// MarshalArtifact renders the schema definition file for cols.
func MarshalArtifact(cols []Column) ([]byte, error) {
	d := Descriptor{Columns: cols}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(artifact{Model: ModelName, Timestamps: true, Fields: d.Fields()}); err != nil {
		return nil, fmt.Errorf("encode schema artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteArtifact overwrites path with the schema definition for cols,
// creating parent directories as needed. The file is replaced atomically.
func WriteArtifact(path string, cols []Column) error {
	data, err := MarshalArtifact(cols)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create schema dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".schema-*.json")
	if err != nil {
		return fmt.Errorf("create temp schema file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write schema file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close schema file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace schema file: %w", err)
	}
	return nil
}
