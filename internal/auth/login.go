package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/trasporti/internal/store"
)

// ErrInvalidCredentials is returned for an unknown user or wrong password.
var ErrInvalidCredentials = errors.New("credenziali non valide")

// AdminAccount is the fixed admin login configured by environment.
type AdminAccount struct {
	Username string
	Password string
	TTL      time.Duration
}

// UserStore is the subset of store.Store the authenticator needs.
type UserStore interface {
	FindUser(ctx context.Context, username string) (store.User, error)
}

// Session is the result of a successful login.
type Session struct {
	Token    string
	Username string
	Role     string
}

// Authenticator checks credentials and issues tokens.
type Authenticator struct {
	issuer  *Issuer
	users   UserStore
	admin   AdminAccount
	userTTL time.Duration
}

// NewAuthenticator builds an Authenticator. A zero AdminAccount disables
// the fixed admin login; a nil users disables stored users.
func NewAuthenticator(issuer *Issuer, users UserStore, admin AdminAccount, userTTL time.Duration) *Authenticator {
	return &Authenticator{
		issuer:  issuer,
		users:   users,
		admin:   admin,
		userTTL: userTTL,
	}
}

// Issuer returns the token issuer, for verification middleware.
func (a *Authenticator) Issuer() *Issuer {
	return a.issuer
}

// Login tries the fixed admin account first, then stored users.
func (a *Authenticator) Login(ctx context.Context, username, password string) (Session, error) {
	if a.admin.Username != "" && a.admin.Password != "" {
		userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.admin.Username))
		passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.admin.Password))
		if userOK&passOK == 1 {
			token, err := a.issuer.Issue(a.admin.Username, a.admin.Username, RoleAdmin, a.admin.TTL)
			if err != nil {
				return Session{}, err
			}
			return Session{Token: token, Username: a.admin.Username, Role: RoleAdmin}, nil
		}
	}

	if a.users == nil {
		return Session{}, ErrInvalidCredentials
	}
	u, err := a.users.FindUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if !CheckPassword(u.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}

	token, err := a.issuer.Issue(u.ID, u.Username, u.Role, a.userTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Username: u.Username, Role: u.Role}, nil
}
