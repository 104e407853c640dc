package web

// This file contains shared utilities used across handlers.

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/JonMunkholm/trasporti/internal/web/middleware"
)

// errBadJSON marks request bodies that do not decode.
var errBadJSON = errors.New("invalid json")

// decodeJSON decodes the request body into v. Oversized bodies keep their
// *http.MaxBytesError; everything else is wrapped in errBadJSON.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errBadJSON
	}
	if err := render.DecodeJSON(r.Body, v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return nil
}

// decodeObject decodes a JSON object body. A literal null decodes to an
// empty map.
func decodeObject(r *http.Request) (map[string]any, error) {
	var body map[string]any
	if err := decodeJSON(r, &body); err != nil {
		return nil, err
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

// respondJSON writes v as JSON with the given status.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// fail maps err to its status and writes the error body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, err, statusFor(err))
}

// claimsOf returns the caller's claims. Routes behind BearerAuth always
// have them.
func claimsOf(r *http.Request) (username, role string) {
	if c, ok := middleware.ClaimsFromContext(r.Context()); ok {
		return c.Username, c.Role
	}
	return "", ""
}
