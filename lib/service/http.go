// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/filetail/wb/lib/netutil"
)

// HTTPServer serves HTTP on a TCP listener. Serve blocks until the
// context is cancelled and in-flight requests drain.
type HTTPServer struct {
	address         string
	portAttempts    int
	handler         http.Handler
	logger          *slog.Logger
	shutdownTimeout time.Duration
	onShutdown      func()

	// ready is closed once the listener is bound.
	ready chan struct{}
	addr  net.Addr
}

// HTTPServerConfig configures an HTTPServer.
type HTTPServerConfig struct {
	// Address is the TCP listen address. Required.
	Address string

	// PortAttempts is how many consecutive ports to try when
	// Address's port is busy. Zero or one means only Address.
	PortAttempts int

	// Handler serves every request. Required.
	Handler http.Handler

	// ShutdownTimeout bounds the wait for in-flight requests during
	// graceful shutdown. Defaults to 10 seconds.
	ShutdownTimeout time.Duration

	// OnShutdown, when set, runs once shutdown begins and before the
	// server waits for requests to drain. Hijacked connections such
	// as websockets are invisible to http.Server.Shutdown, so this is
	// where they get closed.
	OnShutdown func()

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// NewHTTPServer creates a server. Call Serve to start it.
func NewHTTPServer(config HTTPServerConfig) *HTTPServer {
	if config.Address == "" {
		panic("service.HTTPServer: Address is required")
	}
	if config.Handler == nil {
		panic("service.HTTPServer: Handler is required")
	}
	if config.Logger == nil {
		panic("service.HTTPServer: Logger is required")
	}

	timeout := config.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &HTTPServer{
		address:         config.Address,
		portAttempts:    config.PortAttempts,
		handler:         config.Handler,
		logger:          config.Logger,
		shutdownTimeout: timeout,
		onShutdown:      config.OnShutdown,
		ready:           make(chan struct{}),
	}
}

// Ready is closed once the server is bound and accepting connections.
func (s *HTTPServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address. Valid only after Ready is closed;
// with a port fallback it may differ from the configured address.
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}

// Serve accepts connections until ctx is cancelled, then stops
// accepting, runs OnShutdown, and waits up to ShutdownTimeout for
// active requests.
func (s *HTTPServer) Serve(ctx context.Context) error {
	listener, err := netutil.Listen(s.address, s.portAttempts)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler: s.handler,
		// No WriteTimeout: tail and feature websockets stay open
		// indefinitely, and downloads may be large.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if s.addr.String() != s.address {
		s.logger.Warn("configured port busy, using fallback",
			"configured", s.address,
			"address", s.addr.String(),
		)
	}
	s.logger.Info("http server listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
	case err := <-serveDone:
		return err
	}

	if s.onShutdown != nil {
		s.onShutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", "error", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}
