// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notepane/internal/api"
	"github.com/starford/notepane/internal/gateway"
	"github.com/starford/notepane/internal/mcpserver"
	"github.com/starford/notepane/internal/models"
	"github.com/starford/notepane/internal/notes"
	"github.com/starford/notepane/internal/sse"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)
	app.logConfig(logger)

	store, closeStore, err := app.openStore(logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ctl := notes.New(store, notes.WithLogger(logger))

	// SSE broker fed by every controller state change.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	unsubscribe := ctl.Subscribe(broker.PublishState)
	defer unsubscribe()

	var ready atomic.Bool
	r := newRouter(ctl, broker, cfg.Auth, ready.Load)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Initial load. Failures are recorded in the state, not fatal.
	g.Go(func() error {
		if err := ctl.Refresh(gCtx); err != nil {
			return nil
		}
		ready.Store(true)
		st := publishReady(broker, ctl, app.version)
		logger.Info("Initial refresh finished",
			slog.Int("notes", len(st.Notes)),
			slog.String("last_error", st.LastError))
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Closing the broker ends open SSE streams so Shutdown does not wait on them.
		logger.Info("Closing SSE streams", slog.Int("clients", broker.ClientCount()))
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the controller as MCP tools over stdin/stdout. Logs go to
// stderr because stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)
	app.logConfig(logger)

	store, closeStore, err := app.openStore(logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ctl := notes.New(store, notes.WithLogger(logger))
	if err := ctl.Refresh(ctx); err != nil {
		return err
	}

	logger.Info("MCP server starting on stdio", slog.String("version", app.version))
	return mcpserver.New(ctl, app.version).ServeStdio()
}

// Ready is the payload of the one-off ready event sent after the first refresh.
type Ready struct {
	Version   string `json:"version"`
	Notes     int    `json:"notes"`
	LastError string `json:"last_error,omitempty"`
}

// publishReady tells connected SSE clients that the first load has finished.
func publishReady(broker *sse.Broker, ctl *notes.Controller, version string) models.State {
	st := ctl.Snapshot()
	broker.Publish(sse.Event{Type: sse.EventReady, Data: Ready{
		Version:   version,
		Notes:     len(st.Notes),
		LastError: st.LastError,
	}})
	return st
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func (a *application) logConfig(logger *slog.Logger) {
	cfg := a.config
	attrs := []any{
		slog.String("version", a.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("gateway_driver", cfg.Gateway.Driver),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()),
	}
	switch cfg.Gateway.Driver {
	case gateway.DriverREST:
		attrs = append(attrs, slog.String("rest_url", cfg.Gateway.REST.URL), slog.String("rest_table", cfg.Gateway.REST.Table))
	case gateway.DriverVault:
		attrs = append(attrs, slog.String("vault_path", cfg.Gateway.Vault.Path))
	default:
		attrs = append(attrs, slog.String("sqlite_path", cfg.Gateway.SQLite.Path))
	}
	logger.Info("Configuration loaded", attrs...)
}

// openStore returns the injected store or opens the configured one.
// The returned close function is a no-op for injected stores.
func (a *application) openStore(logger *slog.Logger) (gateway.Store, func(), error) {
	if a.store != nil {
		return a.store, func() {}, nil
	}
	store, err := gateway.Open(a.config.Gateway, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init gateway: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("close gateway", slog.String("error", err.Error()))
		}
	}, nil
}

// newRouter assembles the top-level HTTP handler.
func newRouter(ctl *notes.Controller, broker *sse.Broker, auth AuthConfig, ready func() bool) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api, SSE included.
	r.Mount("/api", api.NewRouter(ctl, auth.AuthEnabled(), auth.Token, broker))

	return r
}
