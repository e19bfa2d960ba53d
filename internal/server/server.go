// Package server exposes connection string parsing, entity-client
// resolution and store pings over a small JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapconn/internal/cli/config"
	"github.com/leapstack-labs/leapconn/pkg/datadir"
	"github.com/leapstack-labs/leapconn/pkg/entityclient"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:8765"

// Server is the API server.
type Server struct {
	addr    string
	watch   bool
	logger  *slog.Logger
	cfg     atomic.Pointer[config.Config]
	pool    *entityclient.Pool
	handler http.Handler
}

// Config holds configuration for the API server.
type Config struct {
	Addr   string
	Config *config.Config
	// Watch reloads named connections when the config file changes.
	Watch  bool
	Logger *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.Config{DataDirectory: config.DefaultDataDirectory}
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	s := &Server{
		addr:   addr,
		watch:  cfg.Watch,
		logger: logger,
		pool:   entityclient.NewPool(datadir.Expander{Root: appCfg.DataDirectory}, logger),
	}
	s.cfg.Store(appCfg)
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Config returns the configuration currently in use.
func (s *Server) Config() *config.Config {
	return s.cfg.Load()
}

func (s *Server) routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		requestLogger(s.logger),
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/providers", s.handleProviders)
		r.Get("/connections", s.handleConnections)
		r.Get("/pool", s.handlePool)
		r.Post("/parse", s.handleParse)
		r.Post("/resolve", s.handleResolve)
		r.Post("/ping", s.handlePing)
	})
	return r
}

// Serve listens on the configured address and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down and
// closes pooled store connections.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", "addr", "http://"+ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start config watcher if enabled
	if cfgFile := s.Config().ConfigFile; s.watch && cfgFile != "" {
		eg.Go(func() error {
			return config.Watch(config.WithLogger(egctx, s.logger), cfgFile, s.reload)
		})
	}

	// Start HTTP server
	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	err := eg.Wait()
	if closeErr := s.pool.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

// reload swaps in a reloaded configuration. A failed reload keeps the
// previous one.
func (s *Server) reload(cfg *config.Config, err error) {
	if err != nil {
		s.logger.Warn("config reload failed, keeping previous configuration", "error", err)
		return
	}
	prev := s.cfg.Swap(cfg)
	if prev != nil && prev.DataDirectory != cfg.DataDirectory {
		s.logger.Warn("data_directory changes take effect after a restart",
			"current", prev.DataDirectory, "configured", cfg.DataDirectory)
	}
	s.logger.Info("configuration reloaded", "connections", len(cfg.Connections))
}

// requestLogger logs each request with slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
