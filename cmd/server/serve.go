package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"econglobe.io/explorer/internal/api"
	"econglobe.io/explorer/internal/auth"
	"econglobe.io/explorer/internal/core"
	"econglobe.io/explorer/internal/dashboard"
	"econglobe.io/explorer/internal/store"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	logger := a.logger

	db, err := store.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	var (
		notifier dashboard.Notifier = dashboard.NewLocalHub()
		revoker  auth.Revoker       = auth.NewMemoryRevoker()
	)
	if a.cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, a.cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		notifier = dashboard.NewRedisNotifier(rdb, logger.Named("notify"))
		revoker = auth.NewRedisRevoker(rdb)
		logger.Info("using redis for dashboard updates and token revocation")
	}

	completer, closeCompleter, err := a.completer(ctx)
	if err != nil {
		return err
	}
	defer closeCompleter()

	wb := a.catalog()
	tokens := auth.NewTokenIssuer(a.cfg.JWTSecret, a.cfg.TokenTTL)
	handler := api.NewHandler(api.Deps{
		Catalog:         wb,
		DB:              db,
		Auth:            auth.NewService(db, tokens, revoker, logger.Named("auth")),
		Presence:        auth.NewPresence(),
		Dashboard:       dashboard.NewService(db, notifier, wb, logger.Named("dashboard")),
		Sessions:        core.NewSessions(completer, logger.Named("ai")),
		Logger:          logger.Named("http"),
		AIRatePerMinute: a.cfg.AIRatePerMinute,
		CookieSecure:    a.cfg.CookieSecure,
	})

	// No read or write timeout: websocket streams stay open indefinitely.
	srv := &http.Server{
		Addr:              ":" + a.cfg.HTTPPort,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("chat_provider", a.cfg.ChatProvider))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return rdb, nil
}

// completer builds the chat backend named by CHAT_PROVIDER. The returned
// func releases it.
func (a *app) completer(ctx context.Context) (core.Completer, func(), error) {
	switch a.cfg.ChatProvider {
	case "gemini":
		g, err := core.NewGeminiClient(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel, a.logger.Named("gemini"))
		if err != nil {
			return nil, nil, err
		}
		if !g.Configured() {
			a.logger.Warn("GEMINI_API_KEY is not set; AI replies will ask for one")
		}
		return g, g.Close, nil
	default:
		url := strings.TrimRight(a.cfg.OpenAIBaseURL, "/") + "/chat/completions"
		client := core.NewOpenAIClient(a.cfg.OpenAIAPIKey, url, a.cfg.OpenAIModel, nil, a.logger.Named("openai"))
		if !client.Configured() {
			a.logger.Warn("OPENAI_API_KEY is not set; AI replies will ask for one")
		}
		return client, func() {}, nil
	}
}
