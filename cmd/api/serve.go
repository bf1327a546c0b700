package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mojocode/api/internal/app"
	"mojocode/api/internal/auth"
	"mojocode/api/internal/config"
	"mojocode/api/internal/llm"
	"mojocode/api/internal/logger"
	"mojocode/api/internal/search"
	"mojocode/api/internal/session"
	"mojocode/api/internal/store"
	"mojocode/api/internal/vault"
	"mojocode/api/internal/workspace"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply pending migrations and run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	log := logger.WithComponent("main")

	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if _, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	box, err := vault.New(cfg.SecretsKey)
	if err != nil {
		return fmt.Errorf("secrets key: %w", err)
	}
	dataStore := store.NewPostgresStore(db, box)

	redisStore, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer redisStore.Close()

	verifier := auth.NewCachedVerifier(
		auth.NewProviderVerifier(cfg.AuthProviderURL, cfg.AuthAnonKey, nil),
		redisStore,
		cfg.AuthCacheTTL,
	)

	if err := os.MkdirAll(cfg.WorkspaceDir, 0o755); err != nil {
		return fmt.Errorf("create workspace dir: %w", err)
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(db))
	go searchService.ReindexAllFromPG(context.WithoutCancel(ctx))

	service := app.New(cfg, app.Dependencies{
		Store:     dataStore,
		Sessions:  redisStore,
		Verifier:  verifier,
		Workspace: workspace.New(cfg.WorkspaceDir),
		LLM:       llm.NewClient(nil),
		Search:    searchService,
	})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// git and completion routes can run up to the command timeout
		WriteTimeout: cfg.CommandTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("MojoCode API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	return nil
}
