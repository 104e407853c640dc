package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/trasporti/internal/auth"
	"github.com/JonMunkholm/trasporti/internal/core"
	"github.com/JonMunkholm/trasporti/internal/logging"
)

func recordError(w http.ResponseWriter, r *http.Request, err error, status int) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestBearerAuth(t *testing.T) {
	issuer, err := auth.NewIssuer("secret")
	require.NoError(t, err)
	valid, err := issuer.Issue("u1", "mario", auth.RoleUser, time.Hour)
	require.NoError(t, err)
	expired, err := issuer.Issue("u1", "mario", auth.RoleUser, -time.Hour)
	require.NoError(t, err)

	var seen *auth.Claims
	var actor core.Actor
	h := BearerAuth(issuer, recordError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		actor, _ = core.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantBody: "token mancante"},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantBody: "token mancante"},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusUnauthorized, wantBody: "token mancante"},
		{name: "garbage token", header: "Bearer abc.def.ghi", wantStatus: http.StatusForbidden, wantBody: "token non valido"},
		{name: "expired token", header: "Bearer " + expired, wantStatus: http.StatusForbidden, wantBody: "token non valido"},
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + valid, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			req.RemoteAddr = "10.1.2.3"
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}

	require.NotNil(t, seen)
	assert.Equal(t, "mario", seen.Username)
	assert.Equal(t, core.Actor{Username: "mario", Role: auth.RoleUser, IP: "10.1.2.3"}, actor)
}

func TestRequireRole(t *testing.T) {
	guard := RequireRole(auth.RoleAdmin, recordError)(http.HandlerFunc(okHandler))

	tests := []struct {
		name       string
		claims     *auth.Claims
		wantStatus int
	}{
		{name: "no claims", claims: nil, wantStatus: http.StatusUnauthorized},
		{name: "user role", claims: &auth.Claims{Username: "u", Role: auth.RoleUser}, wantStatus: http.StatusForbidden},
		{name: "admin role", claims: &auth.Claims{Username: "a", Role: auth.RoleAdmin}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/users", nil)
			if tt.claims != nil {
				req = req.WithContext(ContextWithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()
			guard.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 3, recordError)
	frozen := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return frozen }
	h := rl.Handler(http.HandlerFunc(okHandler))

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do("1.1.1.1").Code, "request %d", i)
	}
	rec := do("1.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do("2.2.2.2").Code, "other clients keep their budget")

	frozen = frozen.Add(20 * time.Second)
	assert.Equal(t, http.StatusOK, do("1.1.1.1").Code, "one token refilled")

	frozen = frozen.Add(10 * time.Minute)
	rl.evict()
	rl.mu.Lock()
	n := len(rl.visitors)
	rl.mu.Unlock()
	assert.Zero(t, n, "idle visitors evicted")
}

func TestTrustedRealIP(t *testing.T) {
	mw := TrustedRealIP([]string{"10.0.0.0/8", "192.168.1.1", "not-a-cidr"})

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{name: "untrusted keeps remote", remote: "8.8.8.8:1234", headers: map[string]string{"X-Real-IP": "1.2.3.4"}, want: "8.8.8.8"},
		{name: "trusted uses real ip", remote: "10.0.0.5:1234", headers: map[string]string{"X-Real-IP": "1.2.3.4"}, want: "1.2.3.4"},
		{name: "trusted single ip", remote: "192.168.1.1:80", headers: map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1"}, want: "5.6.7.8"},
		{name: "invalid header ignored", remote: "10.0.0.5:1234", headers: map[string]string{"X-Real-IP": "bogus"}, want: "10.0.0.5"},
		{name: "ipv4 mapped", remote: "[::ffff:10.0.0.7]:99", headers: map[string]string{"X-Real-IP": "9.9.9.9"}, want: "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = r.RemoteAddr }))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "info", "text")

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(ContextWithClaims(r.Context(), &auth.Claims{Username: "mario"}))
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/trasporti/x", nil)
	req = req.WithContext(logging.NewContext(req.Context(), logger))
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.True(t, strings.Contains(out, "level=WARN"), out)
	assert.Contains(t, out, "status=404")
	assert.Contains(t, out, "bytes=7")
	assert.Contains(t, out, "user=mario")
}
