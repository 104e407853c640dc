package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/trasporti/internal/auth"
	"github.com/JonMunkholm/trasporti/internal/core"
	"github.com/JonMunkholm/trasporti/internal/logging"
	"github.com/JonMunkholm/trasporti/internal/store"
	"github.com/JonMunkholm/trasporti/internal/web/middleware"
)

// loginRequest is the body of POST /api/login.
type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// userInfo is the public view of the logged-in user.
type userInfo struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type loginResponse struct {
	Token string   `json:"token"`
	User  userInfo `json:"user"`
}

// createUserRequest is the body of POST /api/users.
type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=admin user"`
}

// handleLogin exchanges credentials for a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := core.ValidateStruct(req); err != nil {
		s.fail(w, r, err)
		return
	}

	sess, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("login", "user", sess.Username, "role", sess.Role, "ip", r.RemoteAddr)
	respondJSON(w, r, http.StatusOK, loginResponse{
		Token: sess.Token,
		User:  userInfo{Username: sess.Username, Role: sess.Role},
	})
}

// handleMe returns the verified token claims.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		s.fail(w, r, middleware.ErrMissingToken)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"user": claims})
}

// handleCreateUser stores a new login. Admin only.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := core.ValidateStruct(req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleUser
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	u, err := s.service.Store().CreateUser(r.Context(), store.User{
		Username:     req.Username,
		PasswordHash: hash,
		Role:         req.Role,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	actor, _ := claimsOf(r)
	logging.FromContext(r.Context()).Info("user created", "user", u.Username, "role", u.Role, "by", actor)
	respondJSON(w, r, http.StatusCreated, u)
}
