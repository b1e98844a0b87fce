package relay

import (
	"fmt"
	"log/slog"

	"github.com/Tyrowin/newsrelay/internal/metrics"
)

// Result summarizes one broadcast pass.
type Result struct {
	Targets   int
	Delivered int
	Failed    int
	Evicted   int
}

// Broadcaster delivers messages to every registered connection, isolating
// per-connection failures.
type Broadcaster struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *metrics.Relay
}

// NewBroadcaster creates a broadcaster over registry. logger and m may be nil.
func NewBroadcaster(registry *Registry, logger *slog.Logger, m *metrics.Relay) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		registry: registry,
		logger:   logger,
		metrics:  m,
	}
}

// Broadcast makes one best-effort delivery pass over a registry snapshot.
// Connections found closed or failing delivery are removed from the registry
// and closed after the pass. Broadcast never fails and never retries.
func (b *Broadcaster) Broadcast(message string) Result {
	conns := b.registry.Snapshot()
	result := Result{Targets: len(conns)}

	var toEvict []*Connection
	for _, conn := range conns {
		if conn.Closed() {
			b.logger.Warn("Connection already closed, marking for removal", "conn_id", conn.String())
			toEvict = append(toEvict, conn)
			continue
		}

		if err := b.deliver(conn, message); err != nil {
			b.logger.Warn("Delivery failed, marking for removal", "conn_id", conn.String(), "error", err)
			result.Failed++
			toEvict = append(toEvict, conn)
			continue
		}
		result.Delivered++
	}

	result.Evicted = b.evict(toEvict)

	b.metrics.ObserveBroadcast(result.Delivered, result.Failed, result.Evicted)
	b.logger.Debug("Broadcast complete",
		"targets", result.Targets,
		"delivered", result.Delivered,
		"evicted", result.Evicted)

	return result
}

// deliver sends to one connection, converting a panic into an error.
func (b *Broadcaster) deliver(conn *Connection, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during send: %v", r)
		}
	}()
	return conn.Send(message)
}

func (b *Broadcaster) evict(conns []*Connection) int {
	evicted := 0
	for _, conn := range conns {
		if !b.registry.Remove(conn) {
			continue
		}
		evicted++
		b.logger.Info("Removed disconnected client from active list", "conn_id", conn.String())

		if err := conn.Close(); err != nil && !IsExpectedCloseError(err) {
			b.logger.Debug("Error closing evicted connection", "conn_id", conn.String(), "error", err)
		}
	}
	return evicted
}
