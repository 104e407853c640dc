// Package admin provides administrative operations used by the admin CLI.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/trasporti/internal/logging"
	"github.com/JonMunkholm/trasporti/internal/store"
)

// ResetTimeout is the maximum duration for a reset operation.
const ResetTimeout = 30 * time.Second

// Reset clears the records collection. The schema registry and users are
// kept. This is a destructive operation - use with caution.
func Reset(ctx context.Context, st store.Store) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	removed, err := st.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset records: %w", err)
	}

	logging.FromContext(ctx).Warn("records reset", "removed", removed)
	return removed, nil
}
