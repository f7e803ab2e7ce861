package registry

import (
	"net/netip"
	"testing"

	"github.com/lanbridge/lanbridge/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateAssignsIncreasingHandles(t *testing.T) {
	r := New(8)
	h1 := r.Allocate(Config{Position: proto.PositionLeft})
	h2 := r.Allocate(Config{Position: proto.PositionRight})
	assert.Less(t, h1, h2)
	assert.Less(t, h2, IncomingHandleBase)
}

func TestAllocateIncomingUsesReservedRange(t *testing.T) {
	r := New(8)
	addr := netip.MustParseAddrPort("10.0.0.5:54321")
	h := r.AllocateIncoming(addr)
	assert.GreaterOrEqual(t, h, IncomingHandleBase)
	assert.True(t, IsIncoming(h))
}

func TestPositionExclusivity(t *testing.T) {
	r := New(8)
	a := r.Allocate(Config{Position: proto.PositionRight})
	b := r.Allocate(Config{Position: proto.PositionRight})

	require.NoError(t, r.Activate(a))
	peerA, _ := r.Get(a)
	assert.True(t, peerA.State.Active)

	require.NoError(t, r.Activate(b))
	peerA, _ = r.Get(a)
	peerB, _ := r.Get(b)
	assert.False(t, peerA.State.Active, "activating b must deactivate a at the same position")
	assert.True(t, peerB.State.Active)

	active, ok := r.AtPosition(proto.PositionRight)
	require.True(t, ok)
	assert.Equal(t, b, active.Handle)
}

func TestIncomingPeersExcludedFromPositionCheck(t *testing.T) {
	r := New(8)
	configured := r.Allocate(Config{Position: proto.PositionLeft})
	require.NoError(t, r.Activate(configured))

	incoming := r.AllocateIncoming(netip.MustParseAddrPort("10.0.0.9:1"))
	require.NoError(t, r.Activate(incoming))

	peer, _ := r.Get(configured)
	assert.True(t, peer.State.Active, "incoming peer activation must not touch configured peer at same position")
}

func TestDeactivateClearsPressedKeys(t *testing.T) {
	r := New(8)
	h := r.Allocate(Config{Position: proto.PositionTop})
	peer, _ := r.Get(h)
	peer.State.PressedKeys[30] = struct{}{}

	require.NoError(t, r.Deactivate(h))
	assert.Empty(t, peer.State.PressedKeys)
}

func TestGetUnknownHandle(t *testing.T) {
	r := New(8)
	_, err := r.Get(Handle(999))
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestDeleteEmitsChange(t *testing.T) {
	r := New(8)
	h := r.Allocate(Config{Position: proto.PositionBottom})
	<-r.Changes() // drain creation notification

	require.NoError(t, r.Delete(h))
	change := <-r.Changes()
	assert.Equal(t, ChangeDeleted, change.Kind)
	assert.Equal(t, h, change.Handle)

	_, err := r.Get(h)
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestByAddr(t *testing.T) {
	r := New(8)
	h := r.Allocate(Config{Position: proto.PositionLeft})
	addr := netip.MustParseAddrPort("192.168.1.10:4242")
	require.NoError(t, r.MarkAlive(h, addr))

	found, ok := r.ByAddr(addr)
	require.True(t, ok)
	assert.Equal(t, h, found.Handle)

	_, ok = r.ByAddr(netip.MustParseAddrPort("192.168.1.11:4242"))
	assert.False(t, ok)
}
