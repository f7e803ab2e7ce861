// Package portal implements the emulation half of the xdg-desktop-portal /
// GNOME Mutter RemoteDesktop backend: a D-Bus session that injects
// pointer/keyboard events without any Wayland-protocol or uinput
// privilege, for sandboxed or restricted sessions.
//
// Grounded on the teacher's api/pkg/desktop/desktop.go (D-Bus session
// lifecycle: CreateSession/Start) and input.go (injectInput's
// NotifyPointerMotion/NotifyPointerButton/NotifyPointerAxis/
// NotifyKeyboardKeycode dispatch), generalized from a single fixed
// session to the peer-keyed Emulator contract — the underlying D-Bus
// session is still one-per-process (there is one local desktop), exactly
// as the teacher's Server held one WaylandInput.
package portal

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/lanbridge/lanbridge/internal/emulate"
	"github.com/lanbridge/lanbridge/internal/proto"
	"github.com/lanbridge/lanbridge/internal/registry"
)

const (
	remoteDesktopDest = "org.gnome.Mutter.RemoteDesktop"
	remoteDesktopPath = "/org/gnome/Mutter/RemoteDesktop"
	remoteDesktopIface = "org.gnome.Mutter.RemoteDesktop"
	sessionIface       = "org.gnome.Mutter.RemoteDesktop.Session"
)

// Backend wraps one Mutter RemoteDesktop session, shared across handles.
type Backend struct {
	log        zerolog.Logger
	conn       *dbus.Conn
	session    dbus.BusObject
	sessionPath dbus.ObjectPath
	keys       *emulate.PressedKeySet
}

// Open connects to the session bus, creates and starts a RemoteDesktop
// session. Returns emulate.ErrBackendUnavailable if the portal is absent
// (no desktop.Mutter or the user declined the permission prompt).
func Open(log zerolog.Logger) (emulate.Backend, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: session bus: %v", emulate.ErrBackendUnavailable, err)
	}

	obj := conn.Object(remoteDesktopDest, dbus.ObjectPath(remoteDesktopPath))
	var sessionPath dbus.ObjectPath
	if err := obj.Call(remoteDesktopIface+".CreateSession", 0).Store(&sessionPath); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: CreateSession: %v", emulate.ErrBackendUnavailable, err)
	}

	session := conn.Object(remoteDesktopDest, sessionPath)
	if err := session.Call(sessionIface+".Start", 0).Err; err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: Start: %v", emulate.ErrBackendUnavailable, err)
	}

	return &Backend{
		log:         log.With().Str("backend", "portal").Logger(),
		conn:        conn,
		session:     session,
		sessionPath: sessionPath,
		keys:        emulate.NewPressedKeySet(),
	}, nil
}

func (b *Backend) Name() string { return "portal" }

func (b *Backend) Create(registry.Handle) error  { return nil }
func (b *Backend) Destroy(h registry.Handle) error {
	return b.ReleaseKeys(h)
}

func (b *Backend) Consume(h registry.Handle, ev proto.Event) error {
	switch ev.Tag {
	case proto.TagPointerMotion:
		return b.session.Call(sessionIface+".NotifyPointerMotion", 0, ev.DX, ev.DY).Err

	case proto.TagPointerButton:
		return b.session.Call(sessionIface+".NotifyPointerButton", 0, int32(ev.Button), ev.State == 1).Err

	case proto.TagPointerAxis:
		if ev.Axis == proto.AxisVertical {
			return b.session.Call(sessionIface+".NotifyPointerAxis", 0, 0.0, ev.AxisValue, uint32(0)).Err
		}
		return b.session.Call(sessionIface+".NotifyPointerAxis", 0, ev.AxisValue, 0.0, uint32(0)).Err

	case proto.TagPointerAxisStep:
		if ev.Axis == proto.AxisVertical {
			return b.session.Call(sessionIface+".NotifyPointerAxisDiscrete", 0, uint32(0), int32(ev.AxisStep/120)).Err
		}
		return b.session.Call(sessionIface+".NotifyPointerAxisDiscrete", 0, uint32(1), int32(ev.AxisStep/120)).Err

	case proto.TagKeyboardKey:
		pressed := ev.State == 1
		if !b.keys.ShouldInject(h, ev.Key, pressed) {
			return nil
		}
		return b.session.Call(sessionIface+".NotifyKeyboardKeycode", 0, int32(ev.Key), pressed).Err

	case proto.TagKeyboardModifiers:
		// Mutter's portal API has no direct modifier-mask setter;
		// modifier state follows from the individual key events.
		return nil
	}
	return nil
}

func (b *Backend) ReleaseKeys(h registry.Handle) error {
	for _, key := range b.keys.Drain(h) {
		if err := b.session.Call(sessionIface+".NotifyKeyboardKeycode", 0, int32(key), false).Err; err != nil {
			b.log.Warn().Err(err).Uint32("key", key).Msg("failed to release stuck key")
		}
	}
	return nil
}

// NeedsKeyRepeat is false: the compositor end of the portal session
// autorepeats the synthesized keyboard exactly like a physical one
// (SPEC_FULL §4 supplement 5).
func (b *Backend) NeedsKeyRepeat() bool { return false }

func (b *Backend) Terminate() error {
	err := b.session.Call(sessionIface+".Stop", 0).Err
	closeErr := b.conn.Close()
	if err != nil {
		return err
	}
	return closeErr
}
