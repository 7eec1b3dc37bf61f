package httpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const readHeaderTimeout = 10 * time.Second

// Server owns the listening socket of the public HTTP surface.
type Server struct {
	srv    *http.Server
	addr   string
	grace  time.Duration
	logger *slog.Logger

	ln   net.Listener
	done chan struct{}
}

func NewServer(addr string, grace time.Duration, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		addr:   addr,
		grace:  grace,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start binds the socket synchronously so a busy port fails startup.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("http server: listen %s: %w", s.addr, err)
	}
	s.ln = ln

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP_SERVER_FAILED", "err", err)
		}
	}()

	s.logger.Info("HTTP_SERVER_STARTED", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Stop drains in-flight requests for at most the grace period. Hijacked
// WebSocket connections are not tracked here; they end with the registry.
func (s *Server) Stop(ctx context.Context) error {
	if s.ln == nil {
		return nil
	}

	if s.grace > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.grace)
		defer cancel()
	}

	err := s.srv.Shutdown(ctx)
	if err != nil {
		_ = s.srv.Close()
		err = fmt.Errorf("http server: shutdown: %w", err)
	}
	<-s.done

	s.logger.Info("HTTP_SERVER_STOPPED")
	return err
}
