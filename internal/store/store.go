// Package store persists Trasporto records, schema descriptors and users.
//
// Three backends implement [Store]: MongoDB (the original document store),
// PostgreSQL (records kept as JSONB documents) and an in-memory map used by
// tests and local runs. [Open] picks one from the connection string scheme.
//
// Records are schemaless at this layer: a [Document] carries a field map
// whose values are string, float64, time.Time or nil, plus the system
// fields set by the store (_id, createdAt, updatedAt). Shaping values to
// the active schema is the caller's job.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/JonMunkholm/trasporti/internal/schema"
)

var (
	// ErrNotFound is returned when a record, user or schema does not exist.
	// Malformed identifiers are reported the same way.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("already exists")
)

// System field names as they appear in JSON and in queries.
const (
	FieldID        = "_id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Store is the persistence handle shared by the CRUD service and the
// importer. It is opened once and closed on shutdown.
type Store interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	// Schema registry.
	SaveSchema(ctx context.Context, d schema.Descriptor) error
	LatestSchema(ctx context.Context) (schema.Descriptor, error)

	// Bulk import.
	DeleteAll(ctx context.Context) (int64, error)
	InsertMany(ctx context.Context, records []map[string]any, batchSize int) (int, error)

	// Record CRUD.
	Count(ctx context.Context, q Query) (int64, error)
	Find(ctx context.Context, q Query) ([]Document, error)
	Get(ctx context.Context, id string) (Document, error)
	Insert(ctx context.Context, fields map[string]any) (Document, error)
	Replace(ctx context.Context, id string, fields map[string]any) (Document, error)
	Update(ctx context.Context, id string, fields map[string]any) (Document, error)
	Delete(ctx context.Context, id string) error

	// Users.
	FindUser(ctx context.Context, username string) (User, error)
	CreateUser(ctx context.Context, u User) (User, error)
}

// Document is one stored record.
type Document struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarshalJSON flattens the record: schema fields next to _id, createdAt
// and updatedAt.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+3)
	for k, v := range d.Fields {
		out[k] = v
	}
	out[FieldID] = d.ID
	out[FieldCreatedAt] = d.CreatedAt
	out[FieldUpdatedAt] = d.UpdatedAt
	return json.Marshal(out)
}

// User is a stored login.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Match is a literal, case-insensitive substring test on one field.
type Match struct {
	Field string
	Value string
}

// Clause is satisfied when any of its matches is.
type Clause []Match

// DateRange bounds a date field inclusively. Nil bounds are open.
type DateRange struct {
	Field string
	From  *time.Time
	To    *time.Time
}

// Query selects records. Clauses are ANDed together.
type Query struct {
	Clauses      []Clause
	Range        *DateRange
	CreatedAfter time.Time
	SortField    string
	SortDesc     bool
	Skip         int
	Limit        int
}

// cloneFields copies a field map so callers cannot alias stored state.
func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == FieldID || k == FieldCreatedAt || k == FieldUpdatedAt {
			continue
		}
		out[k] = v
	}
	return out
}
