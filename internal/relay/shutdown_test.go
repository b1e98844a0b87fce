package relay

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/newsrelay/internal/logging"
)

func TestShutdownClosesAllConnectionsConcurrently(t *testing.T) {
	const k = 5
	registry := NewRegistry(nil)
	started := make(chan struct{}, k)
	gate := make(chan struct{})

	transports := make([]*fakeTransport, k)
	for i := range transports {
		tr := newFakeTransport()
		tr.closeStarted = started
		tr.closeGate = gate
		transports[i] = tr
		registry.Add(NewConnection(tr))
	}

	coordinator := NewShutdownCoordinator(registry, logging.Discard())
	done := make(chan error, 1)
	go func() { done <- coordinator.Shutdown() }()

	// Every close must be in flight before any of them is allowed to finish.
	for i := range k {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatalf("only %d of %d closes started concurrently", i, k)
		}
	}
	close(gate)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown did not finish")
	}

	assert.Zero(t, registry.Len())
	for _, tr := range transports {
		assert.Equal(t, 1, tr.closeCount())
		assert.Equal(t, CloseGoingAway, tr.lastCloseCode())
	}
}

func TestShutdownToleratesCloseFailures(t *testing.T) {
	registry := NewRegistry(nil)
	failing := newFakeTransport()
	failing.closeErr = errors.New("close handshake failed")
	registry.Add(NewConnection(failing))

	healthy := make([]*fakeTransport, 3)
	for i := range healthy {
		healthy[i] = newFakeTransport()
		registry.Add(NewConnection(healthy[i]))
	}

	err := NewShutdownCoordinator(registry, logging.Discard()).Shutdown()

	require.EqualError(t, err, "close handshake failed")
	assert.Zero(t, registry.Len())
	for _, tr := range healthy {
		assert.Equal(t, 1, tr.closeCount())
	}
}

func TestShutdownRunsOnce(t *testing.T) {
	registry := NewRegistry(nil)
	tr := newFakeTransport()
	registry.Add(NewConnection(tr))
	coordinator := NewShutdownCoordinator(registry, logging.Discard())

	require.NoError(t, coordinator.Shutdown())

	late := newFakeTransport()
	registry.Add(NewConnection(late))
	require.NoError(t, coordinator.Shutdown())

	assert.Equal(t, 1, tr.closeCount())
	assert.Zero(t, late.closeCount())
	assert.Equal(t, 1, registry.Len())
}

func TestShutdownEndsRunningSessions(t *testing.T) {
	f := newRelayFixture()
	sessions := make([]*Session, 3)
	for i := range sessions {
		sessions[i] = f.session(newFakeTransport(), SessionOptions{})
		runSession(t, sessions[i])
	}

	require.NoError(t, NewShutdownCoordinator(f.registry, logging.Discard()).Shutdown())

	for _, s := range sessions {
		waitClosed(t, s)
	}
	assert.Zero(t, f.registry.Len())
}
