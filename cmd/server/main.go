package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/trasporti/internal/auth"
	"github.com/JonMunkholm/trasporti/internal/config"
	"github.com/JonMunkholm/trasporti/internal/core"
	"github.com/JonMunkholm/trasporti/internal/logging"
	"github.com/JonMunkholm/trasporti/internal/metrics"
	"github.com/JonMunkholm/trasporti/internal/store"
	"github.com/JonMunkholm/trasporti/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireServer(); err != nil {
		return err
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store", store.Backend(cfg.Database.URL),
		"rate_limit_enabled", cfg.Rate.Enabled,
		"admin_login", cfg.Auth.HasAdmin(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to the store
	st, err := store.Open(ctx, store.Options{
		URL:            cfg.Database.URL,
		Database:       cfg.Database.Name,
		Collection:     cfg.Database.Collection,
		MaxConns:       cfg.Database.MaxConns,
		MinConns:       cfg.Database.MinConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			slog.Warn("close store", "error", err)
		}
	}()
	slog.Info("connected to store", "backend", store.Backend(cfg.Database.URL))

	service := core.NewService(st)
	if desc, err := service.Schema(ctx); err == nil {
		slog.Info("active schema", "version", desc.Version, "fields", len(desc.Fields()))
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	authn := auth.NewAuthenticator(issuer, st, auth.AdminAccount{
		Username: cfg.Auth.AdminUser,
		Password: cfg.Auth.AdminPass,
		TTL:      cfg.Auth.AdminTokenTTL,
	}, cfg.Auth.TokenTTL)

	server := web.NewServer(ctx, web.Options{
		Config:  cfg,
		Service: service,
		Auth:    authn,
		Metrics: metrics.New(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(cfg.Server.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("server stopped")
	return nil
}
