package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/trasporti/internal/admin"
	"github.com/JonMunkholm/trasporti/internal/store"
)

var errResetNotConfirmed = errors.New("reset deletes every record; pass --yes to confirm")

func newResetCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored record (schemas and users are kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errResetNotConfirmed
			}
			ctx := cmd.Context()
			return a.withStore(ctx, func(st store.Store) error {
				_, err := admin.Reset(ctx, st)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}
