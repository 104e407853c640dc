package core

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/trasporti/internal/schema"
	"github.com/JonMunkholm/trasporti/internal/store"
)

// Pagination limits for the list endpoint. MaxPage keeps Skip from
// overflowing.
const (
	DefaultPage  = 1
	DefaultLimit = 50
	MaxLimit     = 100
	MaxPage      = math.MaxInt / MaxLimit
	DefaultSort  = "-" + store.FieldCreatedAt
)

// RecentWindow is how far back the recent endpoint looks.
const RecentWindow = 7 * 24 * time.Hour

// searchFields are the text fields covered by the free-text q filter,
// when the active schema has them.
var searchFields = []string{"cliente", "modello", "targa", "carico", "scarico", "note", "indirizzo_ritiro"}

// ListParams holds the list endpoint query string.
type ListParams struct {
	Page     int
	Limit    int
	Sort     string // "field" or "-field"
	Cliente  string
	Targa    string
	Regione  string
	Autista  string
	DataFrom string
	DataTo   string
	Q        string
}

// ParseListParams reads list parameters, clamping pagination to its
// bounds. Unparseable numbers fall back to the defaults.
func ParseListParams(v url.Values) ListParams {
	p := ListParams{
		Page:     DefaultPage,
		Limit:    DefaultLimit,
		Sort:     strings.TrimSpace(v.Get("sort")),
		Cliente:  v.Get("cliente"),
		Targa:    v.Get("targa"),
		Regione:  v.Get("regione"),
		Autista:  v.Get("autista"),
		DataFrom: strings.TrimSpace(v.Get("data_from")),
		DataTo:   strings.TrimSpace(v.Get("data_to")),
		Q:        strings.TrimSpace(v.Get("q")),
	}
	if n, err := strconv.Atoi(v.Get("page")); err == nil {
		p.Page = min(MaxPage, max(1, n))
	}
	if n, err := strconv.Atoi(v.Get("limit")); err == nil {
		p.Limit = min(MaxLimit, max(1, n))
	}
	if p.Sort == "" {
		p.Sort = DefaultSort
	}
	return p
}

// Skip is the number of records before the requested page.
func (p ListParams) Skip() int {
	return (p.Page - 1) * p.Limit
}

// ListMeta describes a page of results.
type ListMeta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// NewListMeta computes the page count for total records.
func NewListMeta(total int64, page, limit int) ListMeta {
	return ListMeta{
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}
}

// ListResult is the list endpoint response body.
type ListResult struct {
	Meta ListMeta         `json:"meta"`
	Data []store.Document `json:"data"`
}

// BuildQuery turns list parameters into a store query for desc.
//
// Filters are literal case-insensitive substring matches. autista matches
// either driver field; q matches any of the search fields present in the
// schema. Each filter is its own clause, so autista and q are both
// required when both are given. Date bounds apply to the record date
// field and are ignored when they do not parse; data_to covers its whole
// day.
func BuildQuery(desc schema.Descriptor, p ListParams) store.Query {
	q := store.Query{
		Skip:  p.Skip(),
		Limit: p.Limit,
	}

	addMatch := func(field, value string) {
		if value != "" {
			q.Clauses = append(q.Clauses, store.Clause{{Field: field, Value: value}})
		}
	}
	addMatch("cliente", p.Cliente)
	addMatch("targa", p.Targa)
	addMatch("regione_carico", p.Regione)

	if p.Autista != "" {
		q.Clauses = append(q.Clauses, store.Clause{
			{Field: "autista_carico", Value: p.Autista},
			{Field: "autista_scarico", Value: p.Autista},
		})
	}

	if p.Q != "" {
		var clause store.Clause
		for _, f := range searchFields {
			if _, ok := desc.Field(f); ok {
				clause = append(clause, store.Match{Field: f, Value: p.Q})
			}
		}
		if len(clause) > 0 {
			q.Clauses = append(q.Clauses, clause)
		}
	}

	if field := DateField(desc); field != "" {
		var r store.DateRange
		if t, ok := schema.ParseDate(p.DataFrom); ok {
			r.From = &t
		}
		if t, ok := schema.ParseDate(p.DataTo); ok {
			end := endOfDay(t)
			r.To = &end
		}
		if r.From != nil || r.To != nil {
			r.Field = field
			q.Range = &r
		}
	}

	q.SortField, q.SortDesc = sortSpec(desc, p.Sort)
	return q
}

// DateField picks the field date filters apply to: "data" when present,
// otherwise the first field whose name mentions data or date.
func DateField(desc schema.Descriptor) string {
	fields := desc.Fields()
	for _, f := range fields {
		if f.Name == "data" {
			return f.Name
		}
	}
	for _, f := range fields {
		name := strings.ToLower(f.Name)
		if strings.Contains(name, "data") || strings.Contains(name, "date") {
			return f.Name
		}
	}
	return ""
}

// sortSpec resolves "field" / "-field". Unknown fields sort by creation
// time, newest first.
func sortSpec(desc schema.Descriptor, sort string) (string, bool) {
	descending := strings.HasPrefix(sort, "-")
	field := strings.TrimPrefix(sort, "-")

	switch field {
	case store.FieldCreatedAt, store.FieldUpdatedAt, store.FieldID:
		return field, descending
	}
	if _, ok := desc.Field(field); ok {
		return field, descending
	}
	return store.FieldCreatedAt, true
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
}
