package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/trasporti/internal/store"
)

// Mutation names used as the metrics op label.
const (
	opCreate  = "create"
	opReplace = "replace"
	opPatch   = "patch"
	opDelete  = "delete"
)

// handleCreate stores a new record shaped to the active schema.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	doc, err := s.service.Create(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.RecordMutation(opCreate)
	respondJSON(w, r, http.StatusCreated, doc)
}

// handleReplace overwrites every field of a record (PUT).
func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	s.update(w, r, opReplace)
}

// handlePatch updates the given fields of a record (PATCH).
func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	s.update(w, r, opPatch)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, op string) {
	id := chi.URLParam(r, "id")
	body, err := decodeObject(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var doc store.Document
	if op == opPatch {
		doc, err = s.service.Patch(r.Context(), id, body)
	} else {
		doc, err = s.service.Replace(r.Context(), id, body)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.RecordMutation(op)
	respondJSON(w, r, http.StatusOK, doc)
}

// handleDelete removes a record.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.RecordMutation(opDelete)
	respondJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}
