package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/trasporti/internal/logging"
	"github.com/JonMunkholm/trasporti/internal/schema"
	"github.com/JonMunkholm/trasporti/internal/store"
)

// Service implements the Trasporti CRUD operations over a Store. Every
// call reads the active schema from the registry, so an import that
// registers a new version takes effect without a restart.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a Service on an open store.
func NewService(st store.Store) *Service {
	return &Service{
		store: st,
		now:   time.Now,
	}
}

// Store returns the underlying store handle.
func (s *Service) Store() store.Store {
	return s.store
}

// Schema returns the latest registered descriptor, or the built-in
// default when no import has run yet.
func (s *Service) Schema(ctx context.Context) (schema.Descriptor, error) {
	d, err := s.store.LatestSchema(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return schema.Default(), nil
	}
	if err != nil {
		return schema.Descriptor{}, fmt.Errorf("load schema: %w", err)
	}
	return d, nil
}

// List returns one page of records matching p.
func (s *Service) List(ctx context.Context, p ListParams) (ListResult, error) {
	desc, err := s.Schema(ctx)
	if err != nil {
		return ListResult{}, err
	}

	q := BuildQuery(desc, p)
	total, err := s.store.Count(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("count records: %w", err)
	}
	docs, err := s.store.Find(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("find records: %w", err)
	}
	if docs == nil {
		docs = []store.Document{}
	}

	return ListResult{
		Meta: NewListMeta(total, p.Page, p.Limit),
		Data: docs,
	}, nil
}

// Recent returns records created within RecentWindow, newest first.
func (s *Service) Recent(ctx context.Context) ([]store.Document, error) {
	docs, err := s.store.Find(ctx, store.Query{
		CreatedAfter: s.now().Add(-RecentWindow),
		SortField:    store.FieldCreatedAt,
		SortDesc:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("find recent records: %w", err)
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return docs, nil
}

// Count returns the number of stored records.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx, store.Query{})
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, id string) (store.Document, error) {
	return s.store.Get(ctx, id)
}

// Create validates body against the active schema and stores it.
func (s *Service) Create(ctx context.Context, body map[string]any) (store.Document, error) {
	fields, err := s.shape(ctx, body, false)
	if err != nil {
		return store.Document{}, err
	}
	doc, err := s.store.Insert(ctx, fields)
	if err != nil {
		return store.Document{}, fmt.Errorf("insert record: %w", err)
	}
	s.logMutation(ctx, "record created", doc.ID)
	return doc, nil
}

// Replace overwrites every schema field of a record.
func (s *Service) Replace(ctx context.Context, id string, body map[string]any) (store.Document, error) {
	fields, err := s.shape(ctx, body, false)
	if err != nil {
		return store.Document{}, err
	}
	doc, err := s.store.Replace(ctx, id, fields)
	if err != nil {
		return store.Document{}, err
	}
	s.logMutation(ctx, "record replaced", id)
	return doc, nil
}

// Patch updates only the fields present in body.
func (s *Service) Patch(ctx context.Context, id string, body map[string]any) (store.Document, error) {
	fields, err := s.shape(ctx, body, true)
	if err != nil {
		return store.Document{}, err
	}
	doc, err := s.store.Update(ctx, id, fields)
	if err != nil {
		return store.Document{}, err
	}
	s.logMutation(ctx, "record updated", id)
	return doc, nil
}

// Delete removes a record.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logMutation(ctx, "record deleted", id)
	return nil
}

func (s *Service) shape(ctx context.Context, body map[string]any, partial bool) (map[string]any, error) {
	desc, err := s.Schema(ctx)
	if err != nil {
		return nil, err
	}
	return ShapeBody(desc, body, partial)
}

func (s *Service) logMutation(ctx context.Context, msg, id string) {
	logger := logging.FromContext(ctx)
	if a, ok := ActorFromContext(ctx); ok {
		logger = logger.With(slog.String("actor", a.Username), slog.String("ip", a.IP))
	}
	logger.Info(msg, "id", id)
}
