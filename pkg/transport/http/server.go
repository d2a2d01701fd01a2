package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentrt/streamrt/pkg/coordinator"
	"github.com/agentrt/streamrt/pkg/transport"
)

// Server wraps an http.Server with the transport adapter and manages
// the full lifecycle including startup and graceful shutdown.
type Server struct {
	httpServer      *http.Server
	adapter         *Adapter
	config          ServerConfig
	logger          *slog.Logger
	extraMiddleware []transport.Middleware
	httpMiddleware  []func(http.Handler) http.Handler
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr              string
	MaxBodySize       int64
	ShutdownTimeout   time.Duration
	HeartbeatInterval time.Duration
	AllowInternal     bool
	Logger            *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              ":8080",
		MaxBodySize:       1 << 20, // 1 MB
		ShutdownTimeout:   30 * time.Second,
		HeartbeatInterval: 15 * time.Second,
		Logger:            slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) { s.config.MaxBodySize = n }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithHeartbeatInterval sets the SSE heartbeat interval. Zero disables
// heartbeats (test mode).
func WithHeartbeatInterval(d time.Duration) ServerOption {
	return func(s *Server) { s.config.HeartbeatInterval = d }
}

// WithAllowInternal lets subscribers see internal: prefixed events.
func WithAllowInternal(allow bool) ServerOption {
	return func(s *Server) { s.config.AllowInternal = allow }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// NewServer creates a new transport server wired to coord and options.
// Default middleware (recovery, request ID, logging) is applied
// automatically; additional middleware (e.g. auth) can be appended with
// WithMiddleware.
func NewServer(coord *coordinator.Coordinator, opts ...ServerOption) *Server {
	s := &Server{
		config: DefaultServerConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	adapterCfg := Config{
		Addr:              s.config.Addr,
		MaxBodySize:       s.config.MaxBodySize,
		ShutdownTimeout:   int(s.config.ShutdownTimeout.Seconds()),
		HeartbeatInterval: s.config.HeartbeatInterval,
		AllowInternal:     s.config.AllowInternal,
	}

	defaultMW := []transport.Middleware{
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(s.logger),
	}
	mw := append(defaultMW, s.extraMiddleware...)

	s.adapter = NewAdapter(coord, adapterCfg, mw...)

	var handler http.Handler = s.adapter.Handler()
	for i := len(s.httpMiddleware) - 1; i >= 0; i-- {
		handler = s.httpMiddleware[i](handler)
	}

	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: handler,
	}

	return s
}

// WithMiddleware appends additional middleware after the built-in
// recovery/request-id/logging chain, e.g. authentication.
func WithMiddleware(mw ...transport.Middleware) ServerOption {
	return func(s *Server) { s.extraMiddleware = append(s.extraMiddleware, mw...) }
}

// WithHTTPMiddleware wraps the server's net/http handler outside the
// turn-handler chain, outermost first. Use this for concerns that must see
// every request including bypassed endpoints, e.g. authentication or CORS.
func WithHTTPMiddleware(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.httpMiddleware = append(s.httpMiddleware, mw...) }
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then gracefully shuts down,
// waiting for in-flight requests to complete within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.listenAndServeWithContext(ctx)
}

func (s *Server) listenAndServeWithContext(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

// ServeOn starts the server on the given listener. Used for testing.
func (s *Server) ServeOn(ln net.Listener) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
