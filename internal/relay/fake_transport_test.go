package relay

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/newsrelay/internal/logging"
)

type readResult struct {
	frame Frame
	err   error
}

// fakeTransport is an in-memory Transport. Inbound frames are queued with
// push; outbound writes are recorded.
type fakeTransport struct {
	mu        sync.Mutex
	sent      []string
	pongs     [][]byte
	writeErr  error
	pongErr   error
	closeErr  error
	panicMsg  string
	closeCode int
	closes    int

	inbound  chan readResult
	closedCh chan struct{}

	// closeGate, when set, blocks Close until it is closed.
	closeGate    chan struct{}
	closeStarted chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound:  make(chan readResult, 32),
		closedCh: make(chan struct{}),
	}
}

func (f *fakeTransport) push(kind FrameKind, data string) {
	f.inbound <- readResult{frame: Frame{Kind: kind, Data: []byte(data)}}
}

func (f *fakeTransport) pushErr(err error) {
	f.inbound <- readResult{err: err}
}

func (f *fakeTransport) ReadFrame() (Frame, error) {
	select {
	case r := <-f.inbound:
		return r.frame, r.err
	case <-f.closedCh:
		return Frame{}, net.ErrClosed
	}
}

func (f *fakeTransport) WriteText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.closes > 0 {
		return net.ErrClosed
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) WritePong(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pongErr != nil {
		return f.pongErr
	}
	f.pongs = append(f.pongs, append([]byte(nil), payload...))
	return nil
}

func (f *fakeTransport) Close(code int) error {
	if f.closeStarted != nil {
		f.closeStarted <- struct{}{}
	}
	if f.closeGate != nil {
		<-f.closeGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.closes++
	if f.closes == 1 {
		f.closeCode = code
		close(f.closedCh)
	}
	return f.closeErr
}

func (f *fakeTransport) setWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func (f *fakeTransport) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeTransport) pongPayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.pongs...)
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *fakeTransport) lastCloseCode() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode
}

func (f *fakeTransport) count(text string) int {
	n := 0
	for _, s := range f.texts() {
		if s == text {
			n++
		}
	}
	return n
}

// pingingTransport also surfaces protocol pings through a callback.
type pingingTransport struct {
	*fakeTransport
	mu      sync.Mutex
	handler func([]byte) error
}

func (p *pingingTransport) OnPing(handler func([]byte) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
}

func (p *pingingTransport) ping(payload string) error {
	p.mu.Lock()
	handler := p.handler
	p.mu.Unlock()
	if handler == nil {
		return errors.New("no ping handler installed")
	}
	return handler([]byte(payload))
}

// relayFixture wires a registry and broadcaster with a silent logger.
type relayFixture struct {
	registry    *Registry
	broadcaster *Broadcaster
}

func newRelayFixture() *relayFixture {
	registry := NewRegistry(nil)
	return &relayFixture{
		registry:    registry,
		broadcaster: NewBroadcaster(registry, logging.Discard(), nil),
	}
}

// member registers a connection backed by a fake transport, as if its
// session were already open.
func (f *relayFixture) member() (*Connection, *fakeTransport) {
	transport := newFakeTransport()
	conn := NewConnection(transport)
	f.registry.Add(conn)
	return conn, transport
}

func (f *relayFixture) session(transport Transport, opts SessionOptions) *Session {
	if opts.WelcomeMessage == "" {
		opts.WelcomeMessage = "Welcome!!!"
	}
	return NewSession(NewConnection(transport), f.registry, f.broadcaster, opts, logging.Discard())
}

// runSession starts s and waits until it is open.
func runSession(t *testing.T, s *Session) {
	t.Helper()
	go s.Run(t.Context())
	require.Eventually(t, func() bool { return s.State() == StateOpen }, time.Second, time.Millisecond)
}

func waitClosed(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("session did not close, state %s", s.State())
	}
	require.Equal(t, StateClosed, s.State())
}
