// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/xnote/internal/ai"
	"github.com/starford/xnote/internal/api"
	"github.com/starford/xnote/internal/index"
	"github.com/starford/xnote/internal/sse"
)

const (
	storeEventThrottle = time.Second
	openWaitTimeout    = 30 * time.Second
)

// Run starts the daemon with the given options and blocks until a shutdown
// signal arrives or ctx is cancelled.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
		slog.SetDefault(logger)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_dir", cfg.Data.Root()),
		slog.String("index_path", cfg.Data.IndexFile()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if app.services == nil {
		svc, err := NewServices(cfg, logger)
		if err != nil {
			return err
		}
		app.services = svc
	}
	svc := app.services

	// Search index, rebuilt incrementally from the store on start.
	db, err := index.Open(cfg.Data.IndexFile())
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if n, err := index.SyncStore(db, svc.Store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial sync complete", slog.Int("changed", n))
	}

	broker := sse.NewBroker(storeEventThrottle)
	defer broker.Close()

	apiRouter := api.NewRouter(api.Deps{
		Notes:     svc.Notes,
		Store:     svc.Store,
		AI:        svc.AI,
		Sharer:    svc.Sharer,
		Images:    svc.Images,
		ImagesDir: filepath.Join(svc.FS.Root(), ai.ImageDir),
		ExportDir: cfg.Data.Exports(),
		Index:     db,
		Broker:    broker,
		Logger:    logger,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

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
		if _, err := svc.Store.Load(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	ln, err := net.Listen("tcp", cfg.App.HTTP.Address())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.App.HTTP.Address(), err)
	}

	httpServer := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := svc.FS.Write(PidFileName, []byte(strconv.Itoa(os.Getpid()))); err != nil {
		logger.Warn("write pid file failed", slog.String("error", err.Error()))
	}
	defer func() {
		if err := svc.FS.Delete(PidFileName); err != nil {
			logger.Warn("remove pid file failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("Server starting...", slog.String("http_address", ln.Addr().String()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reindex and notify the UI when another process rewrites the store.
	g.Go(func() error {
		err := index.Watch(gCtx, db, svc.Store, logger, func(changed int) {
			broker.PublishStoreChanged(changed)
		})
		if err != nil {
			logger.Warn("store watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if app.openNote != "" {
		g.Go(func() error {
			deliverOpen(gCtx, app, broker, logger)
			return nil
		})
	}

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
		broker.Close()

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group's context so the watcher and the open
// delivery stop together with the HTTP server.
var errShutdown = errors.New("shutdown")

// deliverOpen waits for the first event subscriber and sends it note.open.
func deliverOpen(ctx context.Context, app *application, broker *sse.Broker, logger *slog.Logger) {
	n, ok, err := app.services.Notes.FindByName(ctx, app.openNote)
	if err != nil || !ok {
		logger.Warn("note to open not found", slog.String("name", app.openNote))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, openWaitTimeout)
	defer cancel()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for broker.ClientCount() == 0 {
		select {
		case <-ctx.Done():
			logger.Info("no UI connected, dropping open request", slog.String("name", n.Name))
			return
		case <-ticker.C:
		}
	}
	broker.Publish(sse.Event{Type: sse.TypeNoteOpen, Data: map[string]string{"name": n.Name}})
}
