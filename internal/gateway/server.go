package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rickgao/marketstream/internal/health"
	"github.com/rickgao/marketstream/internal/registry"
)

// Config holds the admin HTTP server settings.
type Config struct {
	Addr            string        // listen address, e.g. ":8080"
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration // shutdown bound when Stop's context has no deadline
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the admin HTTP surface over a stream registry.
type Server struct {
	cfg     Config
	reg     registry.Registry
	monitor *health.Monitor
	logger  *slog.Logger

	httpServer *http.Server
	addr       string
}

// NewServer wires the admin server over a registry and its health monitor.
func NewServer(cfg Config, reg registry.Registry, monitor *health.Monitor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	s := &Server{
		cfg:     cfg,
		reg:     reg,
		monitor: monitor,
		logger:  logger,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// routes builds the admin mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /streams", s.handleListStreams)
	mux.HandleFunc("POST /streams", s.handleSubscribe)
	mux.HandleFunc("DELETE /streams/{id}", s.handleStopStream)
	mux.HandleFunc("GET /streams/{id}/health", s.handleStreamHealth)
	mux.HandleFunc("GET /debug/stats", s.handleStats)
	return mux
}

// Start binds the listen address and serves in the background. Bind errors
// are returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.addr = ln.Addr().String()

	go func() {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server error", "error", err)
		}
	}()

	s.logger.Info("admin server started", "addr", s.addr)
	return nil
}

// Addr returns the bound listen address, useful when Config.Addr used ":0".
func (s *Server) Addr() string {
	return s.addr
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	err := s.httpServer.Shutdown(ctx)
	s.logger.Info("admin server stopped")
	return err
}
