// Command admin runs one-shot maintenance tasks against the Trasporti
// store: the spreadsheet import, master user seeding and record reset.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/trasporti/internal/config"
	"github.com/JonMunkholm/trasporti/internal/core"
	"github.com/JonMunkholm/trasporti/internal/logging"
	"github.com/JonMunkholm/trasporti/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		}
		stop()
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the root has run.
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "admin",
		Short:         "Trasporti maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if it exists (Overload overwrites existing env vars)
			if err := godotenv.Overload(); err != nil {
				slog.Debug("no .env file found, using environment variables")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			cmd.SetContext(logging.NewContext(cmd.Context(), logger))
			a.cfg = cfg
			return nil
		},
	}

	root.AddCommand(
		newImportCmd(a),
		newCreateMasterCmd(a),
		newResetCmd(a),
	)
	return root
}

// storeOptions maps the database settings onto store.Options.
func (a *app) storeOptions() store.Options {
	return store.Options{
		URL:            a.cfg.Database.URL,
		Database:       a.cfg.Database.Name,
		Collection:     a.cfg.Database.Collection,
		MaxConns:       a.cfg.Database.MaxConns,
		MinConns:       a.cfg.Database.MinConns,
		ConnectTimeout: a.cfg.Database.ConnectTimeout,
	}
}

// withStore opens the store, runs fn and closes it.
func (a *app) withStore(ctx context.Context, fn func(store.Store) error) (err error) {
	st, err := store.Open(ctx, a.storeOptions())
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Database.ConnectTimeout)
		defer cancel()
		err = errors.Join(err, st.Close(closeCtx))
	}()
	return fn(st)
}
