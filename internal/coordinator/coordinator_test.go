package coordinator

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanbridge/lanbridge/internal/cert"
	capturedummy "github.com/lanbridge/lanbridge/internal/capture/dummy"
	emulatedummy "github.com/lanbridge/lanbridge/internal/emulate/dummy"
	"github.com/lanbridge/lanbridge/internal/proto"
	"github.com/lanbridge/lanbridge/internal/registry"
	"github.com/lanbridge/lanbridge/internal/transport"
)

// newTestCoordinator builds a Coordinator wired to dummy backends and a
// Transport that is never Listen()-ed or given a reachable peer address, so
// no test in this file ever performs real network I/O: every target peer
// below is left with an invalid (zero) ActiveAddr and no IPs, and every
// Send call site these tests reach checks ActiveAddr before dialing out.
func newTestCoordinator(t *testing.T) (*Coordinator, registry.Handle) {
	t.Helper()

	identity, err := cert.LoadOrGenerate(t.TempDir())
	require.NoError(t, err)

	capBack, err := capturedummy.Open(nil) //nolint:staticcheck // dummy backend ignores ctx
	require.NoError(t, err)
	emu, err := emulatedummy.Open()
	require.NoError(t, err)

	reg := registry.New(16)
	tr := transport.New(zerolog.Nop(), identity, transport.NewAuthorizedSet())

	c := New(Config{
		Log:       zerolog.Nop(),
		Registry:  reg,
		Capture:   capBack,
		Emulator:  emu,
		Transport: tr,
	})

	h := reg.Allocate(registry.Config{Hostname: "peer-a", Port: 4242})
	return c, h
}

// TestAwaitingLeaveOnlyLeavesOnAckOrTimeout is testable property 6: once the
// coordinator enters AwaitingLeave for a handle, nothing except a matching
// remote Ack or a liveness timeout moves it out of that state.
func TestAwaitingLeaveOnlyLeavesOnAckOrTimeout(t *testing.T) {
	t.Run("unrelated traffic does not exit AwaitingLeave", func(t *testing.T) {
		c, h := newTestCoordinator(t)
		other := c.reg.Allocate(registry.Config{Hostname: "peer-b", Port: 4242})

		c.state = AwaitingLeave
		c.enteringHandle = h

		// A Leave from some other peer must not affect our own transition.
		c.onRemoteLeave(nil, other)
		assert.Equal(t, AwaitingLeave, c.state)

		// An Ack from the wrong handle must not advance the state.
		c.onRemoteAck(other)
		assert.Equal(t, AwaitingLeave, c.state)
		assert.Equal(t, h, c.enteringHandle)

		// A ping round finishing for an unrelated, still-alive peer must
		// not affect us either.
		c.finishPingRound(nil, nil)
		assert.Equal(t, AwaitingLeave, c.state)
	})

	t.Run("matching Ack transitions to Sending", func(t *testing.T) {
		c, h := newTestCoordinator(t)
		c.state = AwaitingLeave
		c.enteringHandle = h

		c.onRemoteAck(h)

		assert.Equal(t, Sending, c.state)
		assert.Equal(t, h, c.sendingTo)
		assert.Equal(t, registry.Handle(0), c.enteringHandle)
	})

	t.Run("liveness timeout falls back to Receiving", func(t *testing.T) {
		c, h := newTestCoordinator(t)
		c.state = AwaitingLeave
		c.enteringHandle = h
		// peer.State.Alive is already false (zero value) and ActiveAddr is
		// invalid, so finishPingRound treats h as unresponsive without
		// attempting to send anything.

		c.finishPingRound(nil, []registry.Handle{h})

		assert.Equal(t, Receiving, c.state)
		assert.Equal(t, registry.Handle(0), c.enteringHandle)
	})
}

// TestSendingOnlyLeavesOnLeaveOrTimeout is the Sending-side half of property
// 6: once Sending to a handle, only a Leave from that exact handle or its
// own liveness timeout returns the coordinator to Receiving.
func TestSendingOnlyLeavesOnLeaveOrTimeout(t *testing.T) {
	t.Run("Leave from an unrelated handle is ignored", func(t *testing.T) {
		c, h := newTestCoordinator(t)
		other := c.reg.Allocate(registry.Config{Hostname: "peer-b", Port: 4242})
		c.state = Sending
		c.sendingTo = h

		c.onRemoteLeave(nil, other)

		assert.Equal(t, Sending, c.state)
		assert.Equal(t, h, c.sendingTo)
	})

	t.Run("Leave from the sending peer returns to Receiving", func(t *testing.T) {
		c, h := newTestCoordinator(t)
		c.state = Sending
		c.sendingTo = h

		c.onRemoteLeave(nil, h)

		assert.Equal(t, Receiving, c.state)
		assert.Equal(t, registry.Handle(0), c.sendingTo)
	})

	t.Run("timeout on the sending peer returns to Receiving", func(t *testing.T) {
		c, h := newTestCoordinator(t)
		c.state = Sending
		c.sendingTo = h

		c.finishPingRound(nil, []registry.Handle{h})

		assert.Equal(t, Receiving, c.state)
		assert.Equal(t, registry.Handle(0), c.sendingTo)
	})
}

// TestDedupAndTrackMatchesRegistryPressedKeys re-exercises testable
// property 4 at the coordinator level: remote input dedup reads and writes
// the same per-peer pressed_keys set the release path later drains.
func TestDedupAndTrackMatchesRegistryPressedKeys(t *testing.T) {
	c, h := newTestCoordinator(t)

	press := proto.KeyboardKey(0, 30, 1)
	pressAgain := proto.KeyboardKey(0, 30, 1)
	release := proto.KeyboardKey(0, 30, 0)
	releaseAgain := proto.KeyboardKey(0, 30, 0)

	assert.True(t, c.dedupAndTrack(h, press))
	assert.False(t, c.dedupAndTrack(h, pressAgain))
	assert.True(t, c.dedupAndTrack(h, release))
	assert.False(t, c.dedupAndTrack(h, releaseAgain))

	peer, err := c.reg.Get(h)
	require.NoError(t, err)
	assert.False(t, peer.State.HasPressedKeys())
}
