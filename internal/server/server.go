package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tyrowin/newsrelay/internal/config"
	"github.com/Tyrowin/newsrelay/internal/metrics"
	"github.com/Tyrowin/newsrelay/internal/relay"
)

// ErrShuttingDown is returned when a server is started after Shutdown.
var ErrShuttingDown = errors.New("server: shutting down")

// Server owns the relay core and exposes it over HTTP.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	clock   clockwork.Clock
	promReg *prometheus.Registry
	metrics *metrics.Relay

	registry    *relay.Registry
	broadcaster *relay.Broadcaster
	coordinator *relay.ShutdownCoordinator

	origins  *originPolicy
	upgrader websocket.Upgrader

	httpServer *http.Server

	// sessionCtx is cancelled on shutdown and ends every running session.
	sessionCtx    context.Context
	cancelSession context.CancelFunc

	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup
}

// New creates a server from cfg. logger and reg may be nil, in which case the
// default slog logger and a fresh Prometheus registry are used.
func New(cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}

	m := metrics.NewRelay(reg)
	registry := relay.NewRegistry(m)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:           cfg,
		logger:        logger,
		clock:         clockwork.NewRealClock(),
		promReg:       reg,
		metrics:       m,
		registry:      registry,
		broadcaster:   relay.NewBroadcaster(registry, logger, m),
		coordinator:   relay.NewShutdownCoordinator(registry, logger),
		origins:       newOriginPolicy(cfg.AllowedOrigins, logger),
		sessionCtx:    ctx,
		cancelSession: cancel,
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.check,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Registry exposes the connection registry.
func (s *Server) Registry() *relay.Registry {
	return s.registry
}

// Broadcaster exposes the broadcaster.
func (s *Server) Broadcaster() *relay.Broadcaster {
	return s.broadcaster
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP listener and blocks until it exits. It
// returns nil after a graceful Shutdown.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()
	if closing {
		return ErrShuttingDown
	}

	s.logger.Info("Server started", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// trackSession registers a session goroutine. It fails once shutdown began.
func (s *Server) trackSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return false
	}
	s.sessions.Add(1)
	return true
}

// Shutdown stops accepting requests, closes every connection through the
// shutdown coordinator and waits for all sessions to finish or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	s.logger.Info("Shutting down HTTP server")
	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		errs = append(errs, err)
	}

	if err := s.coordinator.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	s.cancelSession()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Server stopped")
	case <-ctx.Done():
		s.logger.Warn("Shutdown timeout reached, some sessions may still be running")
		errs = append(errs, ctx.Err())
	}

	return errors.Join(errs...)
}
