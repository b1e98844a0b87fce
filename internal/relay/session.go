package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/newsrelay/internal/logging"
)

// State is a session lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SessionOptions tunes a session. Zero values disable keepalive pings and
// rate limiting.
type SessionOptions struct {
	WelcomeMessage    string
	PingInterval      time.Duration
	RateLimitBurst    int
	RateLimitInterval time.Duration
}

// Session drives one connection from handshake to cleanup.
type Session struct {
	conn        *Connection
	registry    *Registry
	broadcaster *Broadcaster
	opts        SessionOptions
	logger      *slog.Logger
	limiter     *rate.Limiter

	state       atomic.Int32
	cleanupOnce sync.Once
	done        chan struct{}
}

// NewSession creates a session in the connecting state.
func NewSession(conn *Connection, registry *Registry, broadcaster *Broadcaster, opts SessionOptions, logger *slog.Logger) *Session {
	s := &Session{
		conn:        conn,
		registry:    registry,
		broadcaster: broadcaster,
		opts:        opts,
		logger:      logging.WithConnection(logger, conn.String()),
		done:        make(chan struct{}),
	}

	if opts.RateLimitBurst > 0 {
		interval := opts.RateLimitInterval
		if interval <= 0 {
			interval = time.Second
		}
		s.limiter = rate.NewLimiter(rate.Every(interval/time.Duration(opts.RateLimitBurst)), opts.RateLimitBurst)
	}

	return s
}

// Conn returns the session's connection.
func (s *Session) Conn() *Connection {
	return s.conn
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed once cleanup has finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run opens the session, processes inbound frames until the client closes,
// an error occurs or ctx is cancelled, and always runs cleanup before
// returning.
func (s *Session) Run(ctx context.Context) {
	defer s.cleanup()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Session panicked, closing", "panic", r)
		}
	}()

	stop := context.AfterFunc(ctx, func() {
		s.logger.Debug("Session cancelled, closing transport")
		_ = s.conn.CloseWith(CloseGoingAway)
	})
	defer stop()

	if notifier, ok := s.conn.transport.(PingNotifier); ok {
		notifier.OnPing(s.replyPong)
	}

	if err := s.open(); err != nil {
		s.logger.Warn("Failed to open session", "error", err)
		return
	}

	go s.keepalive()
	s.readLoop()
}

func (s *Session) open() error {
	if err := s.conn.Send(s.opts.WelcomeMessage); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}

	s.broadcaster.Broadcast(JoinNotice)
	s.registry.Add(s.conn)
	s.state.Store(int32(StateOpen))

	s.logger.Info("Client connected", "clients", s.registry.Len())
	return nil
}

func (s *Session) readLoop() {
	for {
		frame, err := s.conn.transport.ReadFrame()
		if err != nil {
			s.logReadError(err)
			return
		}

		open, err := s.handleFrame(frame)
		if err != nil {
			s.logger.Warn("Error processing frame, closing", "kind", frame.Kind.String(), "error", err)
			return
		}
		if !open {
			return
		}
	}
}

// handleFrame processes one frame and reports whether the session stays open.
func (s *Session) handleFrame(frame Frame) (bool, error) {
	switch frame.Kind {
	case FrameText:
		text := string(frame.Data)
		s.logger.Info("Received message", "text", text)

		if text == PingText {
			if err := s.conn.Send(PongText); err != nil {
				return false, err
			}
			s.logger.Debug("Sent pong")
			return true, nil
		}

		if s.limiter != nil && !s.limiter.Allow() {
			s.logger.Warn("Rate limit exceeded, discarding message",
				"burst", s.opts.RateLimitBurst,
				"interval", s.opts.RateLimitInterval)
			return true, nil
		}

		s.broadcaster.Broadcast(RelayText(s.conn.String(), text))
		return true, nil

	case FramePing:
		if err := s.replyPong(frame.Data); err != nil {
			return false, err
		}
		return true, nil

	case FrameClose:
		s.logger.Info("Client sent close frame")
		return false, nil

	default:
		s.logger.Warn("Received unexpected frame type", "kind", frame.Kind.String())
		return true, nil
	}
}

func (s *Session) replyPong(payload []byte) error {
	if err := s.conn.Pong(payload); err != nil {
		return err
	}
	s.logger.Debug("Received PING, sent PONG")
	return nil
}

func (s *Session) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		s.logger.Warn("Message exceeded maximum size", "error", err)
	case errors.Is(err, io.EOF) || IsExpectedCloseError(err):
		s.logger.Info("Connection closed", "error", err)
	default:
		s.logger.Error("Error in websocket session", "error", err)
	}
}

func (s *Session) keepalive() {
	if s.opts.PingInterval <= 0 {
		return
	}
	if _, ok := s.conn.transport.(Pinger); !ok {
		return
	}

	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.Ping(); err != nil {
				s.logger.Debug("Keepalive ping failed", "error", err)
				return
			}
		}
	}
}

// cleanup runs once on every exit path. A member is removed and the
// remaining members are told; the transport is closed either way.
func (s *Session) cleanup() {
	s.cleanupOnce.Do(func() {
		s.state.Store(int32(StateClosing))

		if s.registry.Remove(s.conn) {
			s.logger.Info("Client disconnected", "clients", s.registry.Len())
			s.broadcaster.Broadcast(DisconnectNotice)
		}

		if !s.conn.Closed() {
			if err := s.conn.Close(); err != nil && !IsExpectedCloseError(err) {
				s.logger.Warn("Error closing connection", "error", err)
			}
		}

		s.state.Store(int32(StateClosed))
		close(s.done)
	})
}
