// Package registry implements the peer table (spec §3, §4.E): handle
// allocation, config/state storage, and position-occupancy bookkeeping.
//
// The registry is deliberately NOT a concurrent-safe structure: spec §5
// states it is owned exclusively by the single-threaded coordinator task,
// reached by every other task only via message-passing. The teacher's
// analogous structure (api/pkg/desktop/session_registry.go) is a
// sync.Map-keyed table built for concurrent HTTP/WebSocket handlers; that
// shape does not fit here; only the "opaque handle -> record" keying idea
// is carried over; synchronization is dropped in favor of exclusive
// single-goroutine ownership, matching the caller's own concurrency model.
package registry

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/lanbridge/lanbridge/internal/proto"
)

// Handle is an opaque, process-lifetime-stable peer identifier.
//
// Handles below IncomingHandleBase are allocated for configured peers;
// handles at or above it are synthesized for incoming peers accepted
// without a matching configuration entry (spec §3 "Peer handle").
type Handle uint64

// IncomingHandleBase is the reserved threshold: half the 64-bit space.
const IncomingHandleBase Handle = 1 << 63

// ErrPositionOccupied names the position-conflict condition. Nothing in
// this package returns it: Activate silently deactivates the prior
// occupant instead, per spec §3's invariant.
var ErrPositionOccupied = errors.New("registry: position already occupied")

// ErrUnknownHandle is returned by any lookup for a handle not in the table.
var ErrUnknownHandle = errors.New("registry: unknown handle")

// Config is operator-supplied, persisted peer configuration (spec §3).
type Config struct {
	Hostname  string
	Port      uint16
	Position  proto.Position
	FixedIPs  []netip.Addr
	EnterHook string // shell command run when the barrier is crossed
}

// State is derived peer state, never persisted (spec §3).
type State struct {
	Active       bool
	Alive        bool
	ActiveAddr   netip.AddrPort
	IPs          []netip.Addr // union of FixedIPs and DNS-resolved IPs
	Resolving    bool
	PressedKeys  map[uint32]struct{}
}

// HasPressedKeys reports whether any key is currently considered held for
// this peer (spec §3 "has_pressed_keys").
func (s *State) HasPressedKeys() bool { return len(s.PressedKeys) > 0 }

// Peer bundles a handle with its configuration and derived state.
type Peer struct {
	Handle Handle
	Config Config
	State  State
}

// ChangeKind distinguishes the shape of a "peer changed" notification.
type ChangeKind int

const (
	ChangeCreated ChangeKind = iota
	ChangeUpdated
	ChangeDeleted
)

// Change is a notification emitted on every registry mutation except
// MarkAlive and ClearPressedKeys. The frontend surface does not read this
// stream; it relays the coordinator's own notifications instead.
type Change struct {
	Kind   ChangeKind
	Handle Handle
	Peer   Peer // zero value when Kind == ChangeDeleted
}

// Registry is the handle -> (config, state) table. It is not safe for
// concurrent use; callers must own it from a single goroutine.
type Registry struct {
	peers         map[Handle]*Peer
	nextHandle    Handle
	nextIncoming  Handle
	changes       chan Change
}

// New constructs an empty registry. changeBuf sizes the notification
// channel. Registry never blocks trying to send: once the channel is
// full, each new notification is dropped.
func New(changeBuf int) *Registry {
	return &Registry{
		peers:        make(map[Handle]*Peer),
		nextHandle:   1,
		nextIncoming: IncomingHandleBase,
		changes:      make(chan Change, changeBuf),
	}
}

// Changes returns the notification stream. Call once; the channel is never
// closed during normal operation (it is closed by Close).
func (r *Registry) Changes() <-chan Change { return r.changes }

// Close releases the notification channel. Safe to call once, after the
// coordinator has stopped driving the registry.
func (r *Registry) Close() { close(r.changes) }

func (r *Registry) emit(c Change) {
	select {
	case r.changes <- c:
	default:
		// Notification consumer fell behind; spec does not mandate
		// back-pressure here and the coordinator must never block on
		// the frontend, so the notification is dropped.
	}
}

// Allocate creates a new configured peer and returns its handle.
func (r *Registry) Allocate(cfg Config) Handle {
	h := r.nextHandle
	r.nextHandle++
	p := &Peer{Handle: h, Config: cfg, State: State{PressedKeys: make(map[uint32]struct{})}}
	r.peers[h] = p
	r.emit(Change{Kind: ChangeCreated, Handle: h, Peer: *p})
	return h
}

// AllocateIncoming creates a synthesized peer for an accepted connection
// that matches no configured entry, from the reserved upper half of the
// handle space (spec §3).
func (r *Registry) AllocateIncoming(addr netip.AddrPort) Handle {
	h := r.nextIncoming
	r.nextIncoming++
	p := &Peer{
		Handle: h,
		State: State{
			Alive:       true,
			ActiveAddr:  addr,
			PressedKeys: make(map[uint32]struct{}),
		},
	}
	r.peers[h] = p
	r.emit(Change{Kind: ChangeCreated, Handle: h, Peer: *p})
	return h
}

// IsIncoming reports whether h was synthesized for an unconfigured peer.
func IsIncoming(h Handle) bool { return h >= IncomingHandleBase }

// Get returns the peer for h, or ErrUnknownHandle.
func (r *Registry) Get(h Handle) (*Peer, error) {
	p, ok := r.peers[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return p, nil
}

// Delete removes h from the table. Returns ErrUnknownHandle if absent.
func (r *Registry) Delete(h Handle) error {
	if _, ok := r.peers[h]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	delete(r.peers, h)
	r.emit(Change{Kind: ChangeDeleted, Handle: h})
	return nil
}

// ByAddr scans for a peer whose ActiveAddr matches addr. Used by the
// coordinator to map a received frame's source address to a peer.
func (r *Registry) ByAddr(addr netip.AddrPort) (*Peer, bool) {
	for _, p := range r.peers {
		if p.State.ActiveAddr == addr {
			return p, true
		}
	}
	return nil, false
}

// AtPosition returns the configured (non-incoming), active peer at pos, if
// any (spec §3 "client at position P").
func (r *Registry) AtPosition(pos proto.Position) (*Peer, bool) {
	for h, p := range r.peers {
		if IsIncoming(h) {
			continue
		}
		if p.State.Active && p.Config.Position == pos {
			return p, true
		}
	}
	return nil, false
}

// Activate marks h active at its configured position, deactivating any
// other configured peer already occupying that position, per spec §3's
// "at most one active peer per position" invariant. Incoming (synthesized)
// peers never participate in this check (spec §3).
func (r *Registry) Activate(h Handle) error {
	p, err := r.Get(h)
	if err != nil {
		return err
	}
	if !IsIncoming(h) {
		if prior, ok := r.AtPosition(p.Config.Position); ok && prior.Handle != h {
			prior.State.Active = false
			r.emit(Change{Kind: ChangeUpdated, Handle: prior.Handle, Peer: *prior})
		}
	}
	p.State.Active = true
	r.emit(Change{Kind: ChangeUpdated, Handle: h, Peer: *p})
	return nil
}

// Deactivate marks h inactive and clears its pressed-key set (spec §3
// "Pressed-key sets are cleared when the peer is deactivated").
func (r *Registry) Deactivate(h Handle) error {
	p, err := r.Get(h)
	if err != nil {
		return err
	}
	p.State.Active = false
	clearPressedKeys(p)
	r.emit(Change{Kind: ChangeUpdated, Handle: h, Peer: *p})
	return nil
}

// Active returns every currently-active peer (configured and incoming).
func (r *Registry) Active() []*Peer {
	var out []*Peer
	for _, p := range r.peers {
		if p.State.Active {
			out = append(out, p)
		}
	}
	return out
}

// All returns every peer in the table, for diagnostics and the frontend's
// "ask for current state" request.
func (r *Registry) All() []*Peer {
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Update mutates a peer's Config via fn and emits a change notification.
func (r *Registry) Update(h Handle, fn func(*Config)) error {
	p, err := r.Get(h)
	if err != nil {
		return err
	}
	fn(&p.Config)
	r.emit(Change{Kind: ChangeUpdated, Handle: h, Peer: *p})
	return nil
}

// MarkAlive records that a valid, authenticated frame was just received
// from h at addr, updating ActiveAddr per spec §3's invariant that it is
// "set only to an address that has recently produced a valid,
// authenticated frame from this peer".
func (r *Registry) MarkAlive(h Handle, addr netip.AddrPort) error {
	p, err := r.Get(h)
	if err != nil {
		return err
	}
	p.State.Alive = true
	p.State.ActiveAddr = addr
	return nil
}

// ClearPressedKeys empties h's held-key set, e.g. on liveness timeout or
// explicit disconnect (spec §3).
func (r *Registry) ClearPressedKeys(h Handle) error {
	p, err := r.Get(h)
	if err != nil {
		return err
	}
	clearPressedKeys(p)
	return nil
}

func clearPressedKeys(p *Peer) {
	for k := range p.State.PressedKeys {
		delete(p.State.PressedKeys, k)
	}
}
