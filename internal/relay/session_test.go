package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionOpenSendsWelcomeAndJoinNotice(t *testing.T) {
	f := newRelayFixture()
	_, peer := f.member()
	tr := newFakeTransport()
	s := f.session(tr, SessionOptions{})

	runSession(t, s)

	assert.Equal(t, []string{"Welcome!!!"}, tr.texts())
	assert.Equal(t, []string{JoinNotice}, peer.texts())
	assert.True(t, f.registry.Contains(s.Conn()))
	assert.Equal(t, 2, f.registry.Len())
}

func TestSessionTextPingRepliesPongWithoutBroadcast(t *testing.T) {
	f := newRelayFixture()
	tr := newFakeTransport()
	s := f.session(tr, SessionOptions{})
	runSession(t, s)
	_, peer := f.member()

	tr.push(FrameText, "ping")

	require.Eventually(t, func() bool { return tr.count(PongText) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"Welcome!!!", "pong"}, tr.texts())
	assert.Empty(t, peer.texts())
}

func TestSessionRelaysTextTaggedWithSender(t *testing.T) {
	f := newRelayFixture()
	tr := newFakeTransport()
	s := f.session(tr, SessionOptions{})
	runSession(t, s)
	_, peer := f.member()

	tr.push(FrameText, "hello")

	want := "Client " + s.Conn().String() + ": hello"
	require.Eventually(t, func() bool { return peer.count(want) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, tr.count(want))
}

func TestSessionProcessesFramesInOrder(t *testing.T) {
	f := newRelayFixture()
	tr := newFakeTransport()
	s := f.session(tr, SessionOptions{})
	runSession(t, s)
	_, peer := f.member()

	for _, text := range []string{"one", "two", "three"} {
		tr.push(FrameText, text)
	}

	prefix := "Client " + s.Conn().String() + ": "
	require.Eventually(t, func() bool { return len(peer.texts()) == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{prefix + "one", prefix + "two", prefix + "three"}, peer.texts())
}

func TestSessionProtocolPingRepliesPong(t *testing.T) {
	f := newRelayFixture()
	tr := newFakeTransport()
	s := f.session(tr, SessionOptions{})
	runSession(t, s)
	_, peer := f.member()

	tr.push(FramePing, "abc")

	require.Eventually(t, func() bool { return len(tr.pongPayloads()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []byte("abc"), tr.pongPayloads()[0])
	assert.Empty(t, peer.texts())
	assert.Equal(t, StateOpen, s.State())
}

func TestSessionPingNotifierRepliesPong(t *testing.T) {
	f := newRelayFixture()
	tr := &pingingTransport{fakeTransport: newFakeTransport()}
	s := f.session(tr, SessionOptions{})
	runSession(t, s)

	require.NoError(t, tr.ping("keepalive"))
	assert.Equal(t, [][]byte{[]byte("keepalive")}, tr.pongPayloads())
}

func TestSessionCloseFrameNotifiesRemainingMembers(t *testing.T) {
	f := newRelayFixture()
	tr := newFakeTransport()
	s := f.session(tr, SessionOptions{})
	runSession(t, s)
	_, peer1 := f.member()
	_, peer2 := f.member()

	tr.push(FrameClose, "")
	waitClosed(t, s)

	assert.False(t, f.registry.Contains(s.Conn()))
	assert.Equal(t, 1, peer1.count(DisconnectNotice))
	assert.Equal(t, 1, peer2.count(DisconnectNotice))
	assert.Zero(t, tr.count(DisconnectNotice))
	assert.Equal(t, 1, tr.closeCount())
	assert.Equal(t, CloseNormal, tr.lastCloseCode())
}

func TestSessionCloseFrameWithNoRemainingMembers(t *testing.T) {
	f := newRelayFixture()
	tr := newFakeTransport()
	s := f.session(tr, SessionOptions{})
	runSession(t, s)

	tr.push(FrameClose, "")
	waitClosed(t, s)

	assert.Zero(t, f.registry.Len())
	assert.Equal(t, []string{"Welcome!!!"}, tr.texts())
}

func TestSessionIgnoresUnexpectedFrames(t *testing.T) {
	f := newRelayFixture()
	tr := newFakeTransport()
	s := f.session(tr, SessionOptions{})
	runSession(t, s)
	_, peer := f.member()

	tr.push(FrameBinary, "\x00\x01")
	tr.push(FrameKind(42), "")
	tr.push(FrameText, "after")

	require.Eventually(t, func() bool { return len(peer.texts()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, StateOpen, s.State())
}

func TestSessionReadErrorRunsCleanup(t *testing.T) {
	f := newRelayFixture()
	tr := newFakeTransport()
	s := f.session(tr, SessionOptions{})
	runSession(t, s)
	_, peer := f.member()

	tr.pushErr(errors.New("decode failure"))
	waitClosed(t, s)

	assert.False(t, f.registry.Contains(s.Conn()))
	assert.Equal(t, 1, peer.count(DisconnectNotice))
	assert.True(t, s.Conn().Closed())
}

func TestSessionPongFailureRunsCleanup(t *testing.T) {
	f := newRelayFixture()
	tr := newFakeTransport()
	tr.pongErr = errors.New("broken pipe")
	s := f.session(tr, SessionOptions{})
	runSession(t, s)

	tr.push(FramePing, "")
	waitClosed(t, s)

	assert.Zero(t, f.registry.Len())
}

func TestSessionCancellationRunsCleanup(t *testing.T) {
	f := newRelayFixture()
	tr := newFakeTransport()
	s := f.session(tr, SessionOptions{})
	_, peer := f.member()

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	require.Eventually(t, func() bool { return s.State() == StateOpen }, time.Second, time.Millisecond)

	cancel()
	waitClosed(t, s)

	assert.Equal(t, CloseGoingAway, tr.lastCloseCode())
	assert.Equal(t, 1, tr.closeCount())
	assert.Equal(t, 1, peer.count(DisconnectNotice))
	assert.Equal(t, 1, f.registry.Len())
}

func TestSessionWelcomeFailureNeverRegisters(t *testing.T) {
	f := newRelayFixture()
	_, peer := f.member()
	tr := newFakeTransport()
	tr.setWriteErr(errors.New("connection reset"))
	s := f.session(tr, SessionOptions{})

	s.Run(t.Context())

	assert.Equal(t, StateClosed, s.State())
	assert.False(t, f.registry.Contains(s.Conn()))
	assert.Empty(t, peer.texts())
	assert.Equal(t, 1, tr.closeCount())
}

func TestSessionEvictedConnectionCleansUpSilently(t *testing.T) {
	f := newRelayFixture()
	tr := newFakeTransport()
	s := f.session(tr, SessionOptions{})
	runSession(t, s)
	_, peer := f.member()

	tr.setWriteErr(errors.New("reset"))
	f.broadcaster.Broadcast("news")
	waitClosed(t, s)

	assert.Equal(t, []string{"news"}, peer.texts())
	assert.Equal(t, 1, f.registry.Len())
}

func TestSessionRateLimitDropsExcessMessages(t *testing.T) {
	f := newRelayFixture()
	tr := newFakeTransport()
	s := f.session(tr, SessionOptions{RateLimitBurst: 1, RateLimitInterval: time.Hour})
	runSession(t, s)
	_, peer := f.member()

	tr.push(FrameText, "first")
	tr.push(FrameText, "second")
	tr.push(FrameText, "ping")

	require.Eventually(t, func() bool { return tr.count(PongText) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"Client " + s.Conn().String() + ": first"}, peer.texts())
}

func TestRegistryCountMatchesOpenSessions(t *testing.T) {
	f := newRelayFixture()
	sessions := make([]*Session, 5)
	transports := make([]*fakeTransport, 5)
	for i := range sessions {
		transports[i] = newFakeTransport()
		sessions[i] = f.session(transports[i], SessionOptions{})
		runSession(t, sessions[i])
	}

	openCount := func() int {
		n := 0
		for _, s := range sessions {
			if s.State() == StateOpen {
				n++
			}
		}
		return n
	}
	assert.Equal(t, openCount(), f.registry.Len())

	transports[1].push(FrameClose, "")
	transports[3].pushErr(errors.New("boom"))
	waitClosed(t, sessions[1])
	waitClosed(t, sessions[3])

	assert.Equal(t, 3, openCount())
	assert.Equal(t, openCount(), f.registry.Len())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "text", FrameText.String())
	assert.Equal(t, "close", FrameClose.String())
}
