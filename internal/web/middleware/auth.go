package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/trasporti/internal/auth"
	"github.com/JonMunkholm/trasporti/internal/core"
)

type ctxKey int

const (
	ctxKeyClaims ctxKey = iota
	ctxKeyHolder
)

var (
	// ErrMissingToken is reported when no bearer token is sent.
	ErrMissingToken = errors.New("token mancante")

	// ErrForbidden is reported when the token lacks the required role.
	ErrForbidden = errors.New("non autorizzato")
)

// claimsHolder lets Logger see claims set further down the chain.
type claimsHolder struct {
	claims *auth.Claims
}

func withClaimsHolder(ctx context.Context, h *claimsHolder) context.Context {
	return context.WithValue(ctx, ctxKeyHolder, h)
}

// ClaimsFromContext returns the verified token claims of the request.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(*auth.Claims)
	return c, ok
}

// ContextWithClaims attaches claims to ctx, as BearerAuth does.
func ContextWithClaims(ctx context.Context, c *auth.Claims) context.Context {
	if h, ok := ctx.Value(ctxKeyHolder).(*claimsHolder); ok {
		h.claims = c
	}
	return context.WithValue(ctx, ctxKeyClaims, c)
}

// BearerAuth requires "Authorization: Bearer <token>".
// A missing token is 401; an invalid or expired one is 403.
// The verified claims and the caller identity are stored in the context.
func BearerAuth(issuer *auth.Issuer, onError ErrorFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				onError(w, r, ErrMissingToken, http.StatusUnauthorized)
				return
			}

			claims, err := issuer.Verify(token)
			if err != nil {
				onError(w, r, err, http.StatusForbidden)
				return
			}

			ctx := ContextWithClaims(r.Context(), claims)
			ctx = core.ContextWithActor(ctx, core.Actor{
				Username: claims.Username,
				Role:     claims.Role,
				IP:       r.RemoteAddr,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose token lacks role with 403.
// It must run after BearerAuth.
func RequireRole(role string, onError ErrorFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				onError(w, r, ErrMissingToken, http.StatusUnauthorized)
				return
			}
			if claims.Role != role {
				onError(w, r, ErrForbidden, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token of a "Bearer <token>" header. The scheme
// is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
