// Package core provides the business logic of the Trasporti backend.
//
// This package holds all domain logic independent of any transport layer.
// It is used by the HTTP server, the admin CLI and the importer without
// modification.
//
// # Architecture
//
// The package is organized around a few concepts:
//
//   - Coercion: raw spreadsheet cells become typed values ([Coerce]). It
//     never fails; fallbacks are reported as an [Outcome].
//   - Transformer: maps raw rows onto the inferred column list
//     ([Transformer.TransformAll]).
//   - Shaping: CRUD bodies are checked and converted against the active
//     schema descriptor ([ShapeBody]).
//   - Service: the CRUD entry point over a [store.Store] ([Service]).
//
// # Record Shape
//
// The shape is not compiled in. Every [Service] call reads the latest
// descriptor from the store's schema registry and falls back to
// [schema.Default] until the first import has run:
//
//	svc := core.NewService(st)
//	desc, _ := svc.Schema(ctx)
//	for _, f := range desc.Fields() {
//	    fmt.Println(f.Name, f.Type)
//	}
//
// # Listing
//
// [ParseListParams] reads the list query string and clamps pagination.
// [BuildQuery] turns it into a store query: every filter is a literal,
// case-insensitive substring match, and each filter is its own clause.
//
// # Error Handling
//
// Technical errors are mapped to client messages using [MapError]. Each
// error category has a code for support reference:
//
//   - DB001-DB006: Database errors (duplicates, connections, timeouts)
//   - REC001: Record not found
//   - VAL001-VAL006: Validation errors (dates, numbers, plates, JSON)
//   - AUTH001-AUTH004: Authentication errors
//   - IMP001-IMP004: Import errors
//   - REQ001-REQ003: Request errors (cancelled, timeout, size)
package core
