package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/trasporti/internal/logging"
	"github.com/JonMunkholm/trasporti/internal/web/templates"
)

// healthTimeout bounds the store ping of the health check.
const healthTimeout = 2 * time.Second

// handleDashboard renders the status page: active schema and record count.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	desc, err := s.service.Schema(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data := templates.DashboardData{
		Model:       desc.Name,
		Version:     desc.Version,
		Source:      desc.Source,
		GeneratedAt: desc.GeneratedAt,
	}
	for _, f := range desc.Fields() {
		_, imported := desc.Column(f.Name)
		data.Fields = append(data.Fields, templates.FieldRow{
			Name:     f.Name,
			Type:     f.Type.String(),
			Header:   f.Header,
			Implicit: !imported,
		})
	}

	// Don't fail the page if the count is unavailable
	if n, err := s.service.Count(ctx); err != nil {
		logging.FromContext(ctx).Warn("count records for dashboard", "error", err)
		data.CountErr = "Conteggio non disponibile"
	} else {
		data.RecordCount = n
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Dashboard(data).Render(ctx, w); err != nil {
		logging.FromContext(ctx).Error("render dashboard", "error", err)
	}
}

// handleHealth reports whether the store answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.service.Store().Ping(ctx); err != nil {
		logging.FromContext(ctx).Warn("health check failed", "error", err)
		respondJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
