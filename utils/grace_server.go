package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

const (
	DEFAULT_READ_TIMEOUT     = 60 * time.Second
	DEFAULT_WRITE_TIMEOUT    = DEFAULT_READ_TIMEOUT
	DEFAULT_SHUTDOWN_TIMEOUT = 30 * time.Second
)

// Server is an http.Server that drains on SIGINT/SIGTERM or when its
// context ends, then runs its shutdown hooks in order.
type Server struct {
	*http.Server

	shutdownTimeout time.Duration
	hooks           []func()
}

// NewServer creates a Server with timeouts and handler. Nil hooks are skipped.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration, onShutdown ...func()) *Server {
	srv := &Server{
		Server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		shutdownTimeout: DEFAULT_SHUTDOWN_TIMEOUT,
	}
	for _, fn := range onShutdown {
		if fn != nil {
			srv.hooks = append(srv.hooks, fn)
		}
	}
	return srv
}

// Listen opens the tcp listener for srv.Addr.
func (srv *Server) Listen() (net.Listener, error) {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.Listen error: %w", err)
	}
	return ln, nil
}

// Serve serves ln until ctx is done or a termination signal arrives. The
// hooks have run by the time it returns. A clean shutdown returns nil.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Server.Serve(ln) }()

	log := Named("server")
	var err error
	select {
	case err = <-serveErr:
	case <-ctx.Done():
		log.Info("graceful shutting down HTTP server")
		sctx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
		err = srv.Shutdown(sctx)
		cancel()
		if err != nil {
			log.Errorf("HTTP server shutdown error: %v", err)
		} else {
			log.Info("HTTP server shutdown success")
		}
		<-serveErr
	}
	for _, fn := range srv.hooks {
		fn()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// GraceServer listens on addr and serves handler until ctx ends or the
// process is told to stop.
func GraceServer(ctx context.Context, addr string, handler http.Handler, onShutdown ...func()) error {
	srv := NewServer(addr, handler, DEFAULT_READ_TIMEOUT, DEFAULT_WRITE_TIMEOUT, onShutdown...)
	ln, err := srv.Listen()
	if err != nil {
		return err
	}
	return srv.Serve(ctx, ln)
}
