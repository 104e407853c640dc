package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JonMunkholm/trasporti/internal/store"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	i, err := NewIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	return i
}

func TestNewIssuer_EmptySecret(t *testing.T) {
	if _, err := NewIssuer(""); !errors.Is(err, ErrNoSecret) {
		t.Errorf("NewIssuer(\"\") error = %v, want ErrNoSecret", err)
	}
}

func TestIssuer_RoundTrip(t *testing.T) {
	i := newTestIssuer(t)

	token, err := i.Issue("u-1", "mario", RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := i.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "u-1" || claims.Username != "mario" || claims.Role != RoleUser {
		t.Errorf("claims = %+v", claims)
	}
	if claims.IsAdmin() {
		t.Error("user token reported admin")
	}
	if claims.ExpiresAt.Sub(claims.IssuedAt.Time) != time.Hour {
		t.Errorf("lifetime = %v, want 1h", claims.ExpiresAt.Sub(claims.IssuedAt.Time))
	}
}

func TestIssuer_VerifyRejects(t *testing.T) {
	i := newTestIssuer(t)
	valid, _ := i.Issue("u-1", "mario", RoleUser, time.Hour)

	other, _ := NewIssuer("another-secret")
	foreign, _ := other.Issue("u-1", "mario", RoleAdmin, time.Hour)

	expired, _ := i.Issue("u-1", "mario", RoleUser, -time.Minute)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Username: "mario", Role: RoleAdmin})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "tampered", token: valid + "x"},
		{name: "wrong secret", token: foreign},
		{name: "expired", token: expired},
		{name: "alg none", token: unsigned},
		{name: "empty", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := i.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestIssuer_MissingExpiry(t *testing.T) {
	i := newTestIssuer(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Username: "x"}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := i.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() without exp error = %v, want ErrInvalidToken", err)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash %q is not bcrypt", hash)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Error("CheckPassword() rejected the right password")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("CheckPassword() accepted a wrong password")
	}
	if _, err := HashPassword(""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("HashPassword(\"\") error = %v", err)
	}
}

func TestValidRole(t *testing.T) {
	for role, want := range map[string]bool{"admin": true, "user": true, "root": false, "": false} {
		if got := ValidRole(role); got != want {
			t.Errorf("ValidRole(%q) = %v, want %v", role, got, want)
		}
	}
}

func TestAuthenticator_Login(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	hash, _ := HashPassword("pw-mario")
	stored, err := mem.CreateUser(ctx, store.User{Username: "mario", PasswordHash: hash, Role: RoleUser})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	issuer := newTestIssuer(t)
	a := NewAuthenticator(issuer, mem, AdminAccount{Username: "admin", Password: "pw-admin", TTL: 4 * time.Hour}, 7*24*time.Hour)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
		wantRole string
		wantSub  string
		wantTTL  time.Duration
	}{
		{name: "fixed admin", username: "admin", password: "pw-admin", wantRole: RoleAdmin, wantSub: "admin", wantTTL: 4 * time.Hour},
		{name: "stored user", username: "mario", password: "pw-mario", wantRole: RoleUser, wantSub: stored.ID, wantTTL: 7 * 24 * time.Hour},
		{name: "admin wrong password", username: "admin", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "user wrong password", username: "mario", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown user", username: "luigi", password: "pw", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := a.Login(ctx, tt.username, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Login() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if s.Role != tt.wantRole || s.Username != tt.username {
				t.Errorf("session = %+v", s)
			}
			claims, err := a.Issuer().Verify(s.Token)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if claims.Subject != tt.wantSub {
				t.Errorf("sub = %q, want %q", claims.Subject, tt.wantSub)
			}
			if ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time); ttl != tt.wantTTL {
				t.Errorf("ttl = %v, want %v", ttl, tt.wantTTL)
			}
		})
	}
}

func TestAuthenticator_NoAdminConfigured(t *testing.T) {
	a := NewAuthenticator(newTestIssuer(t), nil, AdminAccount{}, time.Hour)
	if _, err := a.Login(context.Background(), "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}
