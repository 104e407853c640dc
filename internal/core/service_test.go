package core

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/JonMunkholm/trasporti/internal/schema"
	"github.com/JonMunkholm/trasporti/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	if err := mem.SaveSchema(context.Background(), testDescriptor()); err != nil {
		t.Fatalf("SaveSchema: %v", err)
	}
	return NewService(mem), mem
}

func TestService_SchemaFallsBackToDefault(t *testing.T) {
	svc := NewService(store.NewMemory())

	desc, err := svc.Schema(context.Background())
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if desc.Version != 0 || len(desc.Columns) != len(schema.Default().Columns) {
		t.Errorf("Schema() = version %d with %d columns, want the default shape", desc.Version, len(desc.Columns))
	}
}

func TestService_CreateAndGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, map[string]any{"cliente": "Acme", "targa": "AB123CD", "data": "15/01/2024"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatal("Create() returned empty id")
	}
	if doc.CreatedAt.IsZero() || !doc.CreatedAt.Equal(doc.UpdatedAt) {
		t.Errorf("timestamps = %v / %v", doc.CreatedAt, doc.UpdatedAt)
	}
	if _, ok := doc.Fields["importo"]; !ok {
		t.Error("missing schema field was not stored")
	}

	got, err := svc.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Fields["cliente"] != "Acme" {
		t.Errorf("Get() cliente = %v", got.Fields["cliente"])
	}
}

func TestService_CreateRejectsInvalidPlate(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, map[string]any{"targa": "##"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Create() error = %v, want validation error", err)
	}
	if n, _ := mem.Count(ctx, store.Query{}); n != 0 {
		t.Errorf("store has %d records after a rejected create", n)
	}
}

func TestService_ReplaceAndPatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, map[string]any{"cliente": "Acme", "targa": "AB123CD", "note": "prima"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	patched, err := svc.Patch(ctx, doc.ID, map[string]any{"note": "dopo"})
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if patched.Fields["note"] != "dopo" || patched.Fields["cliente"] != "Acme" {
		t.Errorf("Patch() fields = %v", patched.Fields)
	}

	replaced, err := svc.Replace(ctx, doc.ID, map[string]any{"cliente": "Beta"})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if replaced.Fields["cliente"] != "Beta" {
		t.Errorf("Replace() cliente = %v", replaced.Fields["cliente"])
	}
	if replaced.Fields["note"] != nil {
		t.Errorf("Replace() kept note = %v, want nil", replaced.Fields["note"])
	}
	if !replaced.CreatedAt.Equal(doc.CreatedAt) {
		t.Errorf("Replace() changed createdAt")
	}

	if _, err := svc.Patch(ctx, "missing", map[string]any{"note": "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Patch(missing) error = %v, want ErrNotFound", err)
	}
}

func TestService_Delete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, map[string]any{"cliente": "Acme"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, doc.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, doc.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestService_List(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ContextWithActor(context.Background(), Actor{Username: "admin", IP: "127.0.0.1"})

	for _, c := range []string{"Acme", "Beta", "Acme Nord"} {
		if _, err := svc.Create(ctx, map[string]any{"cliente": c}); err != nil {
			t.Fatalf("Create(%s) error = %v", c, err)
		}
	}

	res, err := svc.List(ctx, ParseListParams(url.Values{"cliente": {"acme"}, "sort": {"cliente"}}))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Meta.Total != 2 || res.Meta.Pages != 1 || res.Meta.Limit != 50 {
		t.Errorf("List() meta = %+v", res.Meta)
	}
	if len(res.Data) != 2 || res.Data[0].Fields["cliente"] != "Acme" {
		t.Errorf("List() data = %+v", res.Data)
	}

	res, err = svc.List(ctx, ParseListParams(url.Values{"cliente": {"zeta"}}))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Data == nil || len(res.Data) != 0 {
		t.Errorf("List() with no match = %v, want empty slice", res.Data)
	}
}

func TestService_ListHugePage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, map[string]any{"cliente": "Acme"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	res, err := svc.List(ctx, ParseListParams(url.Values{"page": {"92233720368547758"}}))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(res.Data) != 0 {
		t.Errorf("List() past the last page returned %d records, want none", len(res.Data))
	}
	if res.Meta.Page != MaxPage {
		t.Errorf("List() meta page = %d, want %d", res.Meta.Page, MaxPage)
	}
}

func TestService_Recent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, _ := svc.Create(ctx, map[string]any{"cliente": "A"})
	second, _ := svc.Create(ctx, map[string]any{"cliente": "B"})

	docs, err := svc.Recent(ctx)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Recent() = %d docs, want 2", len(docs))
	}
	if docs[0].CreatedAt.Before(docs[1].CreatedAt) {
		t.Errorf("Recent() not newest first: %s, %s", docs[0].ID, docs[1].ID)
	}
	ids := map[string]bool{docs[0].ID: true, docs[1].ID: true}
	if !ids[first.ID] || !ids[second.ID] {
		t.Errorf("Recent() ids = %v, want %s and %s", ids, first.ID, second.ID)
	}

	svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	docs, err = svc.Recent(ctx)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("Recent() a week later = %d docs, want 0", len(docs))
	}
}

func TestService_Count(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, map[string]any{}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	n, err := svc.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v, want 3", n, err)
	}
}
