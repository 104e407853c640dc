package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/trasporti/internal/schema"
)

// Memory is a process-local Store. Query semantics mirror the database
// backends closely enough for service and handler tests.
type Memory struct {
	mu      sync.RWMutex
	docs    map[string]*memDoc
	seq     int64
	schemas []schema.Descriptor
	users   map[string]User

	now func() time.Time
}

type memDoc struct {
	doc Document
	seq int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:  make(map[string]*memDoc),
		users: make(map[string]User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Ping(ctx context.Context) error  { return ctx.Err() }
func (m *Memory) Close(ctx context.Context) error { return nil }

func (m *Memory) SaveSchema(ctx context.Context, d schema.Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas = append(m.schemas, d)
	return nil
}

func (m *Memory) LatestSchema(ctx context.Context) (schema.Descriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *schema.Descriptor
	for i := range m.schemas {
		if latest == nil || m.schemas[i].Version > latest.Version {
			latest = &m.schemas[i]
		}
	}
	if latest == nil {
		return schema.Descriptor{}, ErrNotFound
	}
	return *latest, nil
}

func (m *Memory) DeleteAll(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.docs))
	m.docs = make(map[string]*memDoc)
	return n, nil
}

func (m *Memory) InsertMany(ctx context.Context, records []map[string]any, batchSize int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		m.insertLocked(rec)
	}
	return len(records), nil
}

func (m *Memory) insertLocked(fields map[string]any) Document {
	now := m.now()
	m.seq++
	d := Document{
		ID:        uuid.NewString(),
		Fields:    cloneFields(fields),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.docs[d.ID] = &memDoc{doc: d, seq: m.seq}
	return copyDoc(d)
}

func (m *Memory) Count(ctx context.Context, q Query) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.filterLocked(q))), nil
}

func (m *Memory) Find(ctx context.Context, q Query) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := m.filterLocked(q)
	sort.SliceStable(matched, func(i, j int) bool {
		c := compareValues(sortValue(matched[i].doc, q.SortField), sortValue(matched[j].doc, q.SortField))
		if c == 0 {
			return matched[i].seq < matched[j].seq
		}
		if q.SortDesc {
			return c > 0
		}
		return c < 0
	})

	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			return []Document{}, nil
		}
		matched = matched[q.Skip:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]Document, len(matched))
	for i, md := range matched {
		out[i] = copyDoc(md.doc)
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	md, ok := m.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return copyDoc(md.doc), nil
}

func (m *Memory) Insert(ctx context.Context, fields map[string]any) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(fields), nil
}

func (m *Memory) Replace(ctx context.Context, id string, fields map[string]any) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	md.doc.Fields = cloneFields(fields)
	md.doc.UpdatedAt = m.now()
	return copyDoc(md.doc), nil
}

func (m *Memory) Update(ctx context.Context, id string, fields map[string]any) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	for k, v := range cloneFields(fields) {
		md.doc.Fields[k] = v
	}
	md.doc.UpdatedAt = m.now()
	return copyDoc(md.doc), nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *Memory) FindUser(ctx context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) CreateUser(ctx context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[u.Username]; exists {
		return User{}, ErrDuplicate
	}
	u.ID = uuid.NewString()
	u.CreatedAt = m.now()
	m.users[u.Username] = u
	return u, nil
}

// filterLocked returns the documents matching q in insertion order.
func (m *Memory) filterLocked(q Query) []*memDoc {
	var out []*memDoc
	for _, md := range m.docs {
		if matchesQuery(md.doc, q) {
			out = append(out, md)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func matchesQuery(d Document, q Query) bool {
	if !q.CreatedAfter.IsZero() && d.CreatedAt.Before(q.CreatedAfter) {
		return false
	}

	for _, clause := range q.Clauses {
		ok := false
		for _, match := range clause {
			v, present := d.Fields[match.Field]
			if !present || v == nil {
				continue
			}
			if strings.Contains(strings.ToLower(textOf(v)), strings.ToLower(match.Value)) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	if r := q.Range; r != nil {
		t, ok := d.Fields[r.Field].(time.Time)
		if !ok {
			return false
		}
		if r.From != nil && t.Before(*r.From) {
			return false
		}
		if r.To != nil && t.After(*r.To) {
			return false
		}
	}
	return true
}

func sortValue(d Document, field string) any {
	switch field {
	case "", FieldCreatedAt:
		return d.CreatedAt
	case FieldUpdatedAt:
		return d.UpdatedAt
	case FieldID:
		return d.ID
	default:
		return d.Fields[field]
	}
}

// typeRank orders values of different kinds the way MongoDB does:
// null, numbers, strings, dates.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case float64:
		return 1
	case string:
		return 2
	case time.Time:
		return 3
	default:
		return 4
	}
}

func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case string:
		return strings.Compare(av, b.(string))
	case time.Time:
		return av.Compare(b.(time.Time))
	}
	return 0
}

// textOf renders a stored value for substring matching.
func textOf(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

func copyDoc(d Document) Document {
	d.Fields = cloneFields(d.Fields)
	return d
}
