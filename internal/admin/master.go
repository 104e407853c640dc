package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/trasporti/internal/auth"
	"github.com/JonMunkholm/trasporti/internal/logging"
	"github.com/JonMunkholm/trasporti/internal/store"
)

// ErrMasterCredentials is returned when the master username or password is empty.
var ErrMasterCredentials = errors.New("MASTER_USERNAME and MASTER_PASSWORD are required")

// EnsureMaster creates the master admin user unless a user with that
// name already exists. The existing user is left untouched, so running it
// twice is safe. It reports whether a user was created.
func EnsureMaster(ctx context.Context, st store.Store, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, ErrMasterCredentials
	}
	logger := logging.WithFields(ctx, "username", username)

	_, err := st.FindUser(ctx, username)
	if err == nil {
		logger.Info("master user already exists")
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("find master user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	_, err = st.CreateUser(ctx, store.User{
		Username:     username,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
	})
	if errors.Is(err, store.ErrDuplicate) {
		// Created concurrently by another run.
		logger.Info("master user already exists")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create master user: %w", err)
	}

	logger.Info("master user created")
	return true, nil
}
