package coordinator

import (
	"context"
	"net/netip"
	"time"

	"github.com/rs/zerolog"

	"github.com/lanbridge/lanbridge/internal/capture"
	"github.com/lanbridge/lanbridge/internal/emulate"
	"github.com/lanbridge/lanbridge/internal/proto"
	"github.com/lanbridge/lanbridge/internal/registry"
	"github.com/lanbridge/lanbridge/internal/transport"
)

const (
	pingRoundInterval  = 2 * time.Second
	pingResponseWindow = 500 * time.Millisecond
)

// Coordinator is the coordination core (spec §4.F): it owns the registry,
// drives the capture and emulation backends, and exchanges event frames
// over the transport in response to local and remote activity.
type Coordinator struct {
	log zerolog.Logger

	reg          *registry.Registry
	captureBack  capture.Backend
	emulator     emulate.Backend
	tr           *transport.Transport
	releaseChord map[uint32]struct{}

	state          State
	enteringHandle registry.Handle
	sendingTo      registry.Handle
	serial         uint32
	localHeldKeys  map[uint32]struct{}

	requests      chan Request
	notifications chan Notification
	reenable      chan reenableSignal
}

// Config bundles the collaborators a Coordinator needs, each already
// constructed by the backend-preference-list selection logic.
type Config struct {
	Log          zerolog.Logger
	Registry     *registry.Registry
	Capture      capture.Backend
	Emulator     emulate.Backend
	Transport    *transport.Transport
	ReleaseChord []uint32
}

// New constructs a Coordinator. It does not start running until Run is
// called.
func New(cfg Config) *Coordinator {
	chord := make(map[uint32]struct{}, len(cfg.ReleaseChord))
	for _, k := range cfg.ReleaseChord {
		chord[k] = struct{}{}
	}
	return &Coordinator{
		log:           cfg.Log.With().Str("component", "coordinator").Logger(),
		reg:           cfg.Registry,
		captureBack:   cfg.Capture,
		emulator:      cfg.Emulator,
		tr:            cfg.Transport,
		releaseChord:  chord,
		state:         Receiving,
		localHeldKeys: make(map[uint32]struct{}),
		requests:      make(chan Request, 16),
		notifications: make(chan Notification, 64),
		reenable:      make(chan reenableSignal, 4),
	}
}

// Requests returns the channel the frontend surface sends Request values
// on — the only way any other task reaches the registry (spec §4.E).
func (c *Coordinator) Requests() chan<- Request { return c.requests }

// State returns the current state machine position, for diagnostics/tests.
func (c *Coordinator) State() State { return c.state }

func (c *Coordinator) nextSerial() uint32 {
	c.serial++
	return c.serial
}

// Run drives the coordinator's single-threaded event loop until ctx is
// cancelled (spec §5 "single-threaded cooperative task runtime").
func (c *Coordinator) Run(ctx context.Context) error {
	captureEvents := c.captureBack.Events()

	pingTicker := time.NewTicker(pingRoundInterval)
	defer pingTicker.Stop()

	var pendingDeadline <-chan time.Time
	var pendingTargets []registry.Handle

	for {
		select {
		case <-ctx.Done():
			return c.shutdown()

		case ce, ok := <-captureEvents:
			if !ok {
				c.log.Warn().Msg("capture backend event stream closed")
				continue
			}
			c.handleCaptureEvent(ctx, ce)

		case r, ok := <-c.tr.Received:
			if !ok {
				c.log.Warn().Msg("transport receive stream closed")
				continue
			}
			c.handleReceived(ctx, r)

		case rej := <-c.tr.Rejected:
			c.notify(Notification{Kind: NotifyFingerprintRejected, Fingerprint: rej.Fingerprint})

		case req := <-c.requests:
			c.handleRequest(ctx, req)

		case <-pingTicker.C:
			pendingTargets = c.startPingRound(ctx)
			if len(pendingTargets) > 0 {
				pendingDeadline = time.After(pingResponseWindow)
			}

		case <-pendingDeadline:
			c.finishPingRound(ctx, pendingTargets)
			pendingDeadline = nil
			pendingTargets = nil

		case sig := <-c.reenable:
			c.handleReenable(ctx, sig)
		}
	}
}

func (c *Coordinator) shutdown() error {
	c.log.Info().Msg("coordinator shutting down")
	_ = c.captureBack.Close()
	_ = c.emulator.Terminate()
	_ = c.tr.Close()
	c.reg.Close()
	return nil
}

func (c *Coordinator) handleCaptureEvent(ctx context.Context, ce capture.CaptureEvent) {
	switch ce.Kind {
	case capture.Begin:
		c.onLocalBegin(ctx, ce.Handle)
	case capture.Input:
		c.onLocalInput(ctx, ce.Handle, ce.Event)
	case capture.Err:
		c.log.Warn().Err(ce.Err).Msg("capture backend stream error; capture disabled")
		c.notify(Notification{Kind: NotifyCaptureStatusChanged, Status: "disabled"})
	}
}

// onLocalBegin handles a Begin fired by the capture backend. For a
// configured peer handle this is an ordinary outward barrier crossing
// (spec §4.F "Barrier crossing (local -> remote)"); for a synthesized
// incoming handle this is the "returning control" case (spec §4.F
// "Returning control"): the local user physically crossed back over the
// barrier associated with a peer currently being emulated here, so a
// Leave is sent to that peer's original sender instead of starting a new
// Enter/Ack handshake.
func (c *Coordinator) onLocalBegin(ctx context.Context, h registry.Handle) {
	if registry.IsIncoming(h) {
		peer, err := c.reg.Get(h)
		if err != nil {
			return
		}
		if peer.State.ActiveAddr.IsValid() {
			_ = c.tr.Send(ctx, peer.State.ActiveAddr, proto.LeaveEvent(c.nextSerial()))
		}
		_ = c.captureBack.Release()
		_ = c.reg.Deactivate(h)
		c.notify(Notification{Kind: NotifyIncomingPeerDisconnected, Handle: h})
		return
	}

	peer, err := c.reg.Get(h)
	if err != nil {
		return
	}
	if !peer.State.Active {
		_ = c.reg.Activate(h)
	}

	c.state = AwaitingLeave
	c.enteringHandle = h
	c.fanOutEnter(ctx, peer)
	c.notify(Notification{Kind: NotifyCaptureStatusChanged, Handle: h, Status: "awaiting_leave"})
}

func (c *Coordinator) fanOutEnter(ctx context.Context, peer *registry.Peer) {
	enter := proto.EnterEvent(peer.Config.Position)
	for _, ip := range peer.State.IPs {
		addr := netip.AddrPortFrom(ip, peer.Config.Port)
		_ = c.tr.Send(ctx, addr, enter)
	}
}

// onLocalInput handles a forwarded input event from the capture backend
// while some barrier-crossing handle is active. It tracks held keys for
// release-chord detection before anything else, matching spec §4.F "the
// coordinator tracks pressed keys on the currently-captured side".
func (c *Coordinator) onLocalInput(ctx context.Context, h registry.Handle, ev proto.Event) {
	if ev.Tag == proto.TagKeyboardKey {
		c.trackLocalKey(ev)
		if c.chordFullyHeld() {
			c.handleReleaseChord(ctx)
			return
		}
	}

	var target registry.Handle
	switch c.state {
	case Sending:
		target = c.sendingTo
	case AwaitingLeave:
		// Input events may race the Enter/Ack handshake (spec §5
		// "Ordering guarantees"); they are still forwarded to the
		// peer we are entering.
		target = c.enteringHandle
	default:
		return
	}
	if target == 0 {
		return
	}

	peer, err := c.reg.Get(target)
	if err != nil || !peer.State.ActiveAddr.IsValid() {
		return
	}
	_ = c.tr.Send(ctx, peer.State.ActiveAddr, ev)
}

func (c *Coordinator) trackLocalKey(ev proto.Event) {
	if ev.State == 1 {
		c.localHeldKeys[ev.Key] = struct{}{}
	} else {
		delete(c.localHeldKeys, ev.Key)
	}
}

func (c *Coordinator) chordFullyHeld() bool {
	if len(c.releaseChord) == 0 {
		return false
	}
	for k := range c.releaseChord {
		if _, held := c.localHeldKeys[k]; !held {
			return false
		}
	}
	return true
}

// handleReleaseChord implements spec §4.F "Release chord": force a
// transition to Receiving exactly as if a Leave had been received, and
// inject a synthetic disconnect (realized on the wire as a Leave frame,
// since Leave's existing receive-side handling already releases any keys
// the peer believes are held — see onRemoteLeave) to the peer we were
// sending to.
func (c *Coordinator) handleReleaseChord(ctx context.Context) {
	if c.sendingTo != 0 {
		if peer, err := c.reg.Get(c.sendingTo); err == nil && peer.State.ActiveAddr.IsValid() {
			_ = c.tr.Send(ctx, peer.State.ActiveAddr, proto.LeaveEvent(c.nextSerial()))
		}
	}
	_ = c.captureBack.Release()
	c.state = Receiving
	c.sendingTo = 0
	c.enteringHandle = 0
	for k := range c.localHeldKeys {
		delete(c.localHeldKeys, k)
	}
	c.notify(Notification{Kind: NotifyCaptureStatusChanged, Status: "receiving"})
}

func (c *Coordinator) handleReceived(ctx context.Context, r transport.Received) {
	var handle registry.Handle
	if peer, ok := c.reg.ByAddr(r.From); ok {
		handle = peer.Handle
	} else {
		if r.Event.Tag != proto.TagEnter {
			c.log.Debug().Stringer("from", r.From).Msg("dropping frame from unregistered peer")
			return
		}
		handle = c.reg.AllocateIncoming(r.From)
	}
	_ = c.reg.MarkAlive(handle, r.From)

	switch r.Event.Tag {
	case proto.TagEnter:
		c.onRemoteEnter(ctx, handle, r.From)
	case proto.TagAck:
		c.onRemoteAck(handle)
	case proto.TagLeave:
		c.onRemoteLeave(ctx, handle)
	case proto.TagPing:
		_ = c.tr.Send(ctx, r.From, proto.PongEvent())
	case proto.TagPong:
		// MarkAlive above already recorded this.
	default:
		c.onRemoteInput(handle, r.Event)
	}
}

// onRemoteEnter implements spec §4.F "Barrier crossing (remote -> local)".
func (c *Coordinator) onRemoteEnter(ctx context.Context, handle registry.Handle, from netip.AddrPort) {
	_ = c.captureBack.Release()
	_ = c.tr.Send(ctx, from, proto.AckEvent(0))
	_ = c.emulator.Create(handle)
	c.notify(Notification{Kind: NotifyIncomingPeerConnected, Handle: handle})
}

// onRemoteAck implements the AwaitingLeave -> Sending transition. The wire
// protocol's Enter frame carries no serial (spec §6), so correlation is by
// handle identity alone: at most one Enter/Ack exchange is outstanding per
// AwaitingLeave episode (see DESIGN.md for this Open Question resolution).
func (c *Coordinator) onRemoteAck(handle registry.Handle) {
	if c.state != AwaitingLeave || handle != c.enteringHandle {
		return
	}
	c.state = Sending
	c.sendingTo = handle
	c.enteringHandle = 0
	c.notify(Notification{Kind: NotifyCaptureStatusChanged, Handle: handle, Status: "sending"})
}

// onRemoteLeave implements both halves of Leave's dual purpose: on the
// original sender (currently Sending to the peer that left), it is the
// "Returning control" handoff; on the emulating side with keys held for
// that peer, it is the release-chord/disconnect cleanup.
func (c *Coordinator) onRemoteLeave(ctx context.Context, handle registry.Handle) {
	if c.state == Sending && handle == c.sendingTo {
		c.state = Receiving
		c.sendingTo = 0
		_ = c.captureBack.Release()
		c.notify(Notification{Kind: NotifyCaptureStatusChanged, Status: "receiving"})
		return
	}
	_ = c.emulator.ReleaseKeys(handle)
	_ = c.reg.ClearPressedKeys(handle)
}

func (c *Coordinator) onRemoteInput(handle registry.Handle, ev proto.Event) {
	if !c.dedupAndTrack(handle, ev) {
		return
	}
	_ = c.emulator.Consume(handle, ev)
}

// dedupAndTrack implements spec §4.F "Event deduplication" against the
// registry's per-peer pressed_keys set (testable property 4, scenario d).
func (c *Coordinator) dedupAndTrack(handle registry.Handle, ev proto.Event) bool {
	if ev.Tag != proto.TagKeyboardKey {
		return true
	}
	peer, err := c.reg.Get(handle)
	if err != nil {
		return true
	}
	pressed := ev.State == 1
	_, held := peer.State.PressedKeys[ev.Key]
	if pressed {
		if held {
			return false
		}
		peer.State.PressedKeys[ev.Key] = struct{}{}
		return true
	}
	if !held {
		return false
	}
	delete(peer.State.PressedKeys, ev.Key)
	return true
}

func (c *Coordinator) peersOfInterest() []registry.Handle {
	var out []registry.Handle
	if c.state == Sending && c.sendingTo != 0 {
		out = append(out, c.sendingTo)
	}
	for _, p := range c.reg.All() {
		if p.State.HasPressedKeys() {
			out = append(out, p.Handle)
		}
	}
	return out
}

// startPingRound implements spec §4.F "Liveness" steps 1-2: clear each
// peer-of-interest's alive flag and send it a Ping.
func (c *Coordinator) startPingRound(ctx context.Context) []registry.Handle {
	targets := c.peersOfInterest()
	for _, h := range targets {
		peer, err := c.reg.Get(h)
		if err != nil {
			continue
		}
		peer.State.Alive = false
		if peer.State.ActiveAddr.IsValid() {
			_ = c.tr.Send(ctx, peer.State.ActiveAddr, proto.PingEvent())
		}
	}
	return targets
}

// finishPingRound implements spec §4.F "Liveness" step 3: any target whose
// alive flag is still clear is unresponsive.
func (c *Coordinator) finishPingRound(ctx context.Context, targets []registry.Handle) {
	for _, h := range targets {
		peer, err := c.reg.Get(h)
		if err != nil || peer.State.Alive {
			continue
		}

		if c.state == Sending && c.sendingTo == h {
			c.state = Receiving
			c.sendingTo = 0
			_ = c.captureBack.Release()
			c.notify(Notification{Kind: NotifyCaptureStatusChanged, Handle: h, Status: "receiving"})
		} else if c.state == AwaitingLeave && c.enteringHandle == h {
			c.state = Receiving
			c.enteringHandle = 0
			_ = c.captureBack.Release()
			c.notify(Notification{Kind: NotifyCaptureStatusChanged, Handle: h, Status: "receiving"})
		}

		if peer.State.HasPressedKeys() {
			_ = c.emulator.ReleaseKeys(h)
			_ = c.reg.ClearPressedKeys(h)
		}
	}
}

func (c *Coordinator) handleReenable(ctx context.Context, sig reenableSignal) {
	// No backend is recreated here or elsewhere: the signal is only turned
	// into a notification. Nothing in the module currently sends on
	// c.reenable.
	_ = ctx
	c.notify(Notification{Kind: NotifyCaptureStatusChanged, Status: "re-enable-requested"})
	_ = sig
}
