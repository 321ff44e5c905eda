package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Server wraps the Handler with an http.Server for lifecycle management.
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// ServerConfig configures the API server.
type ServerConfig struct {
	// Addr is the address to listen on, e.g. ":8080". Port 0 picks a free port.
	Addr string
	// Runner drives post threads (required).
	Runner Runner
	Tracer trace.Tracer
	Logger *slog.Logger

	// ReadTimeout defaults to 30s. WriteTimeout defaults to 5m because a
	// request may wait on draft generation.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewServer binds the listener and builds the server. It does not start
// serving until Start is called.
func NewServer(cfg ServerConfig) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	handler := NewHandlerWithConfig(HandlerConfig{
		Runner: cfg.Runner,
		Tracer: cfg.Tracer,
		Logger: logger,
	})

	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 5 * time.Minute
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	return &Server{
		listener: listener,
		logger:   logger,
		server: &http.Server{
			Handler:           handler.Routes(),
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      writeTimeout,
		},
	}, nil
}

// Start serves until the server is stopped. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.Addr())
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping API server")
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address, including the chosen port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}
