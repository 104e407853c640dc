package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/trasporti/internal/admin"
	"github.com/JonMunkholm/trasporti/internal/store"
)

func newCreateMasterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create-master",
		Short: "Create the master admin user from MASTER_USERNAME and MASTER_PASSWORD",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withStore(ctx, func(st store.Store) error {
				return createMaster(ctx, a, st)
			})
		},
	}
}

func createMaster(ctx context.Context, a *app, st store.Store) error {
	_, err := admin.EnsureMaster(ctx, st, a.cfg.Auth.MasterUsername, a.cfg.Auth.MasterPassword)
	return err
}
