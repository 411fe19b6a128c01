package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go-fileops/internal/config"
	"go-fileops/internal/handler"
	"go-fileops/internal/middleware"
	"go-fileops/internal/router"
	"go-fileops/internal/websocket"
)

type App struct {
	core   *Core
	server *http.Server
	hub    *websocket.Hub
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	core, err := NewCore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// A nil *TokenService must not reach the middleware as a non-nil
	// interface.
	authMiddleware := middleware.NewAuthMiddleware(nil)
	if core.Tokens != nil {
		authMiddleware = middleware.NewAuthMiddleware(core.Tokens)
	} else {
		slog.Warn("API_TOKEN_SECRET is empty; HTTP API is unauthenticated")
	}

	var history handler.HistoryReader
	if core.History != nil {
		history = core.History
	}

	var health router.HealthCheck
	if core.DB != nil {
		health = func(r *http.Request) error { return core.DB.Health(r.Context()) }
	}

	hub := websocket.NewHub(core.Bus)
	appRouter := router.New(cfg, core.Metrics, authMiddleware, router.Handlers{
		Operations: handler.NewOperationsHandler(core.Engine, history),
		Log:        handler.NewLogHandler(core.Engine),
		Trash:      handler.NewTrashHandler(core.Engine),
		Auth:       handler.NewAuthHandler(core.Tokens),
	}, hub, health)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{core: core, server: server, hub: hub}, nil
}

// Run serves until SIGINT/SIGTERM or ctx ends, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("graceful shutdown failed: %w", err))
	}
	stopHub()
	if err := a.core.Close(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("engine shutdown: %w", err))
	}

	slog.Info("server stopped")
	return runErr
}
