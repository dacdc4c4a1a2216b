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
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/discovery"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/metrics"
	"github.com/starford/ansuz/internal/sqlstore"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/watch"
)

// NewLogger builds the configured slog logger writing to w.
func NewLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	if cfg.LogFormat == LogFormatConsole {
		return slog.New(log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			Level:           log.Level(cfg.LogLevel),
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}

// Session is an opened vault with a discovery service over it.
type Session struct {
	Service  *discovery.Service
	Registry *prometheus.Registry

	cfg    *Config
	logger *slog.Logger
	vault  *storage.FS
	db     *sqlstore.DB
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = NewLogger(app.config.App, os.Stdout)
	}
	return app, nil
}

// Open opens the configured store and builds the discovery service.
// In sqlite mode the database is synced from the vault first.
func Open(opts ...Option) (*Session, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	return open(app.config, app.logger)
}

func open(cfg *Config, logger *slog.Logger) (*Session, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	vault, err := storage.NewOS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	s := &Session{
		Registry: prometheus.NewRegistry(),
		cfg:      cfg,
		logger:   logger,
		vault:    vault,
	}

	var store storage.Accessor = vault
	if cfg.Store.Driver == StoreDriverSQLite {
		s.db, err = sqlstore.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		if _, err := s.Sync(); err != nil {
			_ = s.db.Close()
			return nil, fmt.Errorf("initial sync: %w", err)
		}
		store = s.db
	}

	est, err := cfg.Budget.NewEstimator()
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Service = discovery.New(store, cfg.DiscoveryServiceConfig(),
		discovery.WithEstimator(est),
		discovery.WithMetrics(metrics.New(s.Registry)),
		discovery.WithLogger(logger),
	)
	return s, nil
}

// Sync copies the vault into the sqlite store. It is a no-op in fs mode.
func (s *Session) Sync() (sqlstore.SyncStats, error) {
	if s.db == nil {
		return sqlstore.SyncStats{}, nil
	}
	stats, err := sqlstore.Sync(s.db, s.vault, "", s.logger)
	if err != nil {
		return stats, err
	}
	s.logger.Debug("sqlite store synced",
		slog.Int("upserted", stats.Upserted),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("removed", stats.Removed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("scopes", stats.Scopes))
	return stats, nil
}

// Close releases the store.
func (s *Session) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("close sqlite store", slog.String("error", err.Error()))
		}
	}
}

// Import syncs the vault into the configured SQLite database.
func Import(opts ...Option) (sqlstore.SyncStats, error) {
	app, err := newApplication(opts)
	if err != nil {
		return sqlstore.SyncStats{}, err
	}
	cfg := app.config
	vault, err := storage.NewOS(cfg.Vault.Path)
	if err != nil {
		return sqlstore.SyncStats{}, fmt.Errorf("init storage: %w", err)
	}
	db, err := sqlstore.Open(cfg.Store.SQLitePath)
	if err != nil {
		return sqlstore.SyncStats{}, fmt.Errorf("init sqlite store: %w", err)
	}
	defer db.Close()
	return sqlstore.Sync(db, vault, "", app.logger)
}

func (s *Session) watch(ctx context.Context, cb watch.Callback) error {
	if !s.cfg.Watch.Enabled {
		return nil
	}
	opts := watch.Options{Settle: s.cfg.Watch.Settle}
	if s.db != nil {
		opts.OnSettle = func() {
			if _, err := s.Sync(); err != nil {
				s.logger.Warn("resync failed", slog.String("error", err.Error()))
			}
		}
	}
	return watch.Watch(ctx, s.cfg.Vault.Path, s.logger, cb, opts)
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}

func (s *Session) router(broker *sse.Broker) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := os.Stat(s.cfg.Vault.Path); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "vault unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))

	var events http.Handler
	if broker != nil {
		events = broker
	}
	r.Mount("/api", api.NewRouter(s.Service, s.cfg.Auth.AuthEnabled(), s.cfg.Auth.Token, events))
	return r
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("estimator", cfg.Budget.Estimator),
		slog.String("log_level", cfg.App.LogLevel.String()))

	s, err := open(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	s.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var broker *sse.Broker
	if cfg.Watch.Enabled {
		broker = sse.NewBroker(cfg.Watch.Throttle)
		defer broker.Close()
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           s.router(broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// File watcher feeding SSE and the sqlite store.
	g.Go(func() error {
		cb := func(string, string) {}
		if broker != nil {
			cb = broker.PublishChange
		}
		if err := s.watch(gCtx, cb); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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

// errShutdown cancels the group so the watcher exits with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs always go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := NewLogger(app.config.App, os.Stderr)

	s, err := open(app.config, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	if s.db != nil {
		g.Go(func() error {
			if err := s.watch(gCtx, func(string, string) {}); err != nil {
				logger.Warn("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}
	g.Go(func() error {
		defer stop()
		logger.Info("Starting MCP server", slog.String("vault_path", app.config.Vault.Path))
		err := mcpserver.New(s.Service).ServeStdio(gCtx, logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	})
	return g.Wait()
}
