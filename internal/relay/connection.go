package relay

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrConnectionClosed is returned when writing to a closed connection.
var ErrConnectionClosed = errors.New("relay: connection closed")

// Connection is one accepted client socket. The transport is owned by the
// connection; the registry only keeps a tracking reference.
type Connection struct {
	id        uuid.UUID
	transport Transport

	writeMu sync.Mutex
	closed  atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// NewConnection assigns a fresh identity to transport.
func NewConnection(transport Transport) *Connection {
	return &Connection{
		id:        uuid.New(),
		transport: transport,
	}
}

// ID returns the connection identity.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// String returns the identity in canonical form.
func (c *Connection) String() string {
	return c.id.String()
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	return c.closed.Load()
}

// Send writes one text frame. Concurrent senders are serialized.
func (c *Connection) Send(text string) error {
	if c.Closed() {
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.transport.WriteText(text); err != nil {
		return fmt.Errorf("send to %s: %w", c.id, err)
	}
	return nil
}

// Pong answers a protocol ping with the same payload.
func (c *Connection) Pong(payload []byte) error {
	if c.Closed() {
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.transport.WritePong(payload)
}

// Ping sends a keepalive ping if the transport supports it.
func (c *Connection) Ping() error {
	pinger, ok := c.transport.(Pinger)
	if !ok {
		return nil
	}
	if c.Closed() {
		return ErrConnectionClosed
	}
	return pinger.WritePing()
}

// Close closes the connection normally. See CloseWith.
func (c *Connection) Close() error {
	return c.CloseWith(CloseNormal)
}

// CloseWith marks the connection closed and closes the transport with code.
// Only the first call reaches the transport; later calls return its result.
// The transport close does not wait for in-flight writes.
func (c *Connection) CloseWith(code int) error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.transport.Close(code)
	})
	return c.closeErr
}
