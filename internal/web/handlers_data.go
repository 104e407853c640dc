package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/trasporti/internal/core"
	"github.com/JonMunkholm/trasporti/internal/schema"
)

// handleList serves both the list and search endpoints: one page of
// records matching the query string filters.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	params := core.ParseListParams(r.URL.Query())

	res, err := s.service.List(r.Context(), params)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res)
}

// handleRecent returns records created in the last week.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.Recent(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, docs)
}

// handleGet returns one record.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, doc)
}

// schemaResponse is the body of GET /api/schema.
type schemaResponse struct {
	Name        string         `json:"name"`
	Version     int            `json:"version"`
	Source      string         `json:"source,omitempty"`
	GeneratedAt *time.Time     `json:"generatedAt"`
	Fields      []schema.Field `json:"fields"`
}

// handleSchema returns the active record shape.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	desc, err := s.service.Schema(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var generated *time.Time
	if !desc.GeneratedAt.IsZero() {
		generated = &desc.GeneratedAt
	}
	respondJSON(w, r, http.StatusOK, schemaResponse{
		Name:        desc.Name,
		Version:     desc.Version,
		Source:      desc.Source,
		GeneratedAt: generated,
		Fields:      desc.Fields(),
	})
}
