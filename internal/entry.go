// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/seqsync/internal/api"
	"github.com/starford/seqsync/internal/catalog"
	"github.com/starford/seqsync/internal/mcpserver"
	"github.com/starford/seqsync/internal/sequence"
	"github.com/starford/seqsync/internal/sse"
	"github.com/starford/seqsync/internal/state"
	"github.com/starford/seqsync/internal/storage"
	"github.com/starford/seqsync/internal/structure"
	"github.com/starford/seqsync/internal/viewer"
)

// components are the long-lived pieces shared by the HTTP and MCP front ends.
type components struct {
	root    string
	logger  *slog.Logger
	db      *state.DB
	catalog *catalog.Catalog
	session *viewer.Session
}

func (c *components) Close() {
	c.session.Close()
	c.db.Close()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// build opens storage and the state store, syncs the catalogue and restores
// the last viewer session. pub may be nil.
func build(ctx context.Context, app *application, pub sse.Publisher) (*components, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("structures_path", cfg.Structures.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("addressing", cfg.Visibility.Addressing),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure structures directory exists.
	if err := os.MkdirAll(cfg.Structures.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create structures dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Structures.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := state.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init state: %w", err)
	}

	cat := catalog.New(store, db, logger)
	if err := cat.Sync(); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	var provider sequence.Provider = sequence.NewLocal(cat, cfg.Visibility.Mode())
	if cfg.Sequence.RemoteURL != "" {
		provider = sequence.NewRemote(cfg.Sequence.RemoteURL, cfg.Sequence.Timeout)
		logger.Info("using remote sequence provider", slog.String("url", cfg.Sequence.RemoteURL))
	}

	opts := []viewer.Option{
		viewer.WithStore(db),
		viewer.WithLogger(logger),
		viewer.WithMode(cfg.Visibility.Mode()),
		viewer.WithMaxSelections(cfg.Selection.MaxSelections),
		viewer.WithMaxResidue(cfg.Visibility.MaxResidue),
		viewer.WithPromotePicks(cfg.Sync.PromotePicks),
	}
	if pub != nil {
		opts = append(opts, viewer.WithPublisher(pub))
	}
	session := viewer.New(provider, structure.NewScene(cat), opts...)

	restored, err := session.Restore(ctx)
	if err != nil {
		logger.Warn("session restore failed", slog.String("error", err.Error()))
	} else if restored {
		logger.Info("session restored", slog.String("structure", session.Current().ID))
	}

	return &components{root: store.Root(), logger: logger, db: db, catalog: cat, session: session}, nil
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.CatalogThrottle)
	defer broker.Close()

	c, err := build(ctx, app, broker)
	if err != nil {
		return err
	}
	defer c.Close()
	logger := c.logger

	// Build API handler and router. SSE shares the API auth.
	h := api.NewHandler(c.catalog, c.session, broker)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
		if err := c.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start catalogue watcher with SSE callback.
	g.Go(func() error {
		if err := c.catalog.Watch(gCtx, c.root, broker.PublishStructureEvent); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio until stdin closes.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	c, err := build(ctx, app, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := mcpserver.New(c.catalog, c.session)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.catalog.Watch(gCtx, c.root, func(kind, path string) {
			c.logger.Debug("catalog changed", slog.String("kind", kind), slog.String("path", path))
		}); err != nil {
			c.logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		c.logger.Info("MCP server starting on stdio")
		return srv.ServeStdio()
	})
	return g.Wait()
}
