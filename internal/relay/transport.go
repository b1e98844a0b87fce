package relay

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// FrameKind classifies an inbound frame.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
	FramePing
	FrameClose
)

func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	case FramePing:
		return "ping"
	case FrameClose:
		return "close"
	default:
		return fmt.Sprintf("frame(%d)", int(k))
	}
}

// Frame is one inbound unit read from a transport.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// Close codes used when the server closes a connection.
const (
	CloseNormal    = websocket.CloseNormalClosure
	CloseGoingAway = websocket.CloseGoingAway
)

// Transport is the frame-level view of one client socket. ReadFrame is only
// called from the owning session; writes are serialized by Connection.
type Transport interface {
	ReadFrame() (Frame, error)
	WriteText(text string) error
	WritePong(payload []byte) error
	Close(code int) error
}

// PingNotifier is implemented by transports that handle protocol pings
// inside ReadFrame instead of returning them as frames.
type PingNotifier interface {
	OnPing(handler func(payload []byte) error)
}

// Pinger is implemented by transports that can send keepalive pings.
type Pinger interface {
	WritePing() error
}

// WSOptions configures a WSTransport.
type WSOptions struct {
	MaxMessageSize int64
	PongWait       time.Duration
	WriteTimeout   time.Duration
}

const controlWriteTimeout = time.Second

// WSTransport adapts a gorilla/websocket connection to Transport.
type WSTransport struct {
	conn *websocket.Conn
	opts WSOptions
}

// NewWSTransport wraps conn, applying the read limit and the initial read
// deadline. Pongs from the client extend the read deadline.
func NewWSTransport(conn *websocket.Conn, opts WSOptions) *WSTransport {
	t := &WSTransport{conn: conn, opts: opts}

	if opts.MaxMessageSize > 0 {
		conn.SetReadLimit(opts.MaxMessageSize)
	}
	t.extendReadDeadline()
	conn.SetPongHandler(func(string) error {
		t.extendReadDeadline()
		return nil
	})

	return t
}

func (t *WSTransport) extendReadDeadline() {
	if t.opts.PongWait <= 0 {
		return
	}
	_ = t.conn.SetReadDeadline(time.Now().Add(t.opts.PongWait))
}

func (t *WSTransport) writeDeadline() time.Time {
	if t.opts.WriteTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(t.opts.WriteTimeout)
}

// OnPing routes protocol pings to handler. The handler runs inside ReadFrame.
func (t *WSTransport) OnPing(handler func(payload []byte) error) {
	t.conn.SetPingHandler(func(appData string) error {
		t.extendReadDeadline()
		err := handler([]byte(appData))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})
}

// ReadFrame blocks until the next data or close frame arrives. A close frame
// from the peer is returned as a FrameClose frame with a nil error; a socket
// dropped without one is an error.
func (t *WSTransport) ReadFrame() (Frame, error) {
	messageType, data, err := t.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
			return Frame{Kind: FrameClose, Data: websocket.FormatCloseMessage(closeErr.Code, closeErr.Text)}, nil
		}
		return Frame{}, err
	}

	t.extendReadDeadline()

	switch messageType {
	case websocket.TextMessage:
		return Frame{Kind: FrameText, Data: data}, nil
	case websocket.BinaryMessage:
		return Frame{Kind: FrameBinary, Data: data}, nil
	default:
		return Frame{Kind: FrameKind(messageType), Data: data}, nil
	}
}

// WriteText writes one text frame.
func (t *WSTransport) WriteText(text string) error {
	if err := t.conn.SetWriteDeadline(t.writeDeadline()); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// WritePong answers a protocol ping.
func (t *WSTransport) WritePong(payload []byte) error {
	return t.conn.WriteControl(websocket.PongMessage, payload, time.Now().Add(controlWriteTimeout))
}

// WritePing sends a keepalive ping.
func (t *WSTransport) WritePing() error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWriteTimeout))
}

// Close sends a close frame with code and releases the socket. The close
// frame is best effort; the socket is released either way.
func (t *WSTransport) Close(code int) error {
	msg := websocket.FormatCloseMessage(code, "")
	if err := t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWriteTimeout)); err != nil && !IsExpectedCloseError(err) {
		_ = t.conn.Close()
		return fmt.Errorf("write close frame: %w", err)
	}

	if err := t.conn.Close(); err != nil && !IsExpectedCloseError(err) {
		return err
	}
	return nil
}

// IsExpectedCloseError checks if an error is expected during connection closure.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
