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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/jotter/internal/api"
	"github.com/starford/jotter/internal/inbox"
	"github.com/starford/jotter/internal/notefile"
	"github.com/starford/jotter/internal/noteservice"
	"github.com/starford/jotter/internal/notestore"
	"github.com/starford/jotter/internal/sse"
	"github.com/starford/jotter/internal/storage"
)

// Run starts the HTTP server, and the inbox watcher when configured, and
// blocks until ctx is cancelled or a shutdown signal arrives.
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
		logger = NewLogger(os.Stdout, cfg.App.LogLevel)
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("inbox_path", cfg.Inbox.Path),
		slog.Int("palette_size", len(cfg.Notes.Palette)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	palette, err := cfg.Notes.ParsedPalette()
	if err != nil {
		return fmt.Errorf("parse palette: %w", err)
	}

	// The broker outlives the store so that the last writes still fan out.
	broker := sse.NewBroker(cfg.Events.ChangedThrottle)
	defer broker.Close()

	db, err := notestore.Open(cfg.SQLite.Path,
		notestore.WithLogger(logger),
		notestore.WithChangeFunc(broker.PublishNoteEvent),
	)
	if err != nil {
		return fmt.Errorf("init note store: %w", err)
	}
	defer db.Close()

	svc := noteservice.NewService(db)

	apiRouter := api.NewRouter(svc, api.RouterConfig{
		AuthEnabled:       cfg.Auth.AuthEnabled(),
		Token:             cfg.Auth.Token,
		Palette:           palette,
		Images:            cfg.Images.Limits(),
		MaxUploadBytes:    cfg.Images.MaxUploadBytes,
		Events:            broker,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		pingCtx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(pingCtx); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeHealth(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeHealth(w, http.StatusOK, "ok")
	})

	r.Mount("/api", apiRouter)

	// Request contexts derive from streamCtx so that long-lived event and
	// view streams end when shutdown begins.
	streamCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streamCtx },
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Inbox.Enabled() {
		src, err := storage.EnsureFS(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
		importer := notefile.NewImporter(svc, palette, cfg.Images.Limits(), logger)
		watcher := inbox.New(src, importer,
			inbox.WithSettle(cfg.Inbox.Settle),
			inbox.WithLogger(logger),
		)
		g.Go(func() error {
			if err := watcher.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("inbox watcher: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		cancelStreams()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		stop()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func writeHealth(w http.ResponseWriter, status int, state string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, state)
}
