// Package wlroots implements the wlroots-protocol emulation backend using
// zwlr_virtual_pointer_v1 and zwp_virtual_keyboard_v1, via
// github.com/bnema/wayland-virtual-input-go. Generalized from the
// teacher's api/pkg/desktop/wayland_input.go WaylandInput type (which
// drove one compositor's input for a single screen) into a peer-keyed
// Emulator: every handle shares the one virtual pointer/keyboard pair
// (there is exactly one local desktop session to inject into), with
// per-handle pressed-key bookkeeping layered on top via
// emulate.PressedKeySet.
package wlroots

import (
	"fmt"

	"github.com/bnema/wayland-virtual-input-go/virtual_keyboard"
	"github.com/bnema/wayland-virtual-input-go/virtual_pointer"
	"github.com/rs/zerolog"

	"github.com/lanbridge/lanbridge/internal/emulate"
	"github.com/lanbridge/lanbridge/internal/proto"
	"github.com/lanbridge/lanbridge/internal/registry"
)

// Backend drives one shared virtual pointer and virtual keyboard for
// every active peer handle.
type Backend struct {
	log zerolog.Logger

	pointerManager  *virtual_pointer.VirtualPointerManager
	pointer         *virtual_pointer.VirtualPointer
	keyboardManager *virtual_keyboard.VirtualKeyboardManager
	keyboard        *virtual_keyboard.VirtualKeyboard

	keys *emulate.PressedKeySet
}

// Open connects to the running Wayland compositor and requests one
// virtual pointer and one virtual keyboard. Returns emulate.ErrBackendUnavailable
// if the compositor does not advertise the wlr virtual-input protocols.
func Open(log zerolog.Logger) (emulate.Backend, error) {
	pm, err := virtual_pointer.NewVirtualPointerManager()
	if err != nil {
		return nil, fmt.Errorf("%w: virtual pointer manager: %v", emulate.ErrBackendUnavailable, err)
	}
	pointer, err := pm.CreateVirtualPointer()
	if err != nil {
		return nil, fmt.Errorf("%w: create virtual pointer: %v", emulate.ErrBackendUnavailable, err)
	}

	km, err := virtual_keyboard.NewVirtualKeyboardManager()
	if err != nil {
		return nil, fmt.Errorf("%w: virtual keyboard manager: %v", emulate.ErrBackendUnavailable, err)
	}
	keyboard, err := km.CreateVirtualKeyboard()
	if err != nil {
		return nil, fmt.Errorf("%w: create virtual keyboard: %v", emulate.ErrBackendUnavailable, err)
	}

	return &Backend{
		log:             log.With().Str("backend", "wlroots").Logger(),
		pointerManager:  pm,
		pointer:         pointer,
		keyboardManager: km,
		keyboard:        keyboard,
		keys:            emulate.NewPressedKeySet(),
	}, nil
}

func (b *Backend) Name() string { return "wlroots" }

func (b *Backend) Create(registry.Handle) error  { return nil }
func (b *Backend) Destroy(h registry.Handle) error {
	return b.ReleaseKeys(h)
}

func (b *Backend) Consume(h registry.Handle, ev proto.Event) error {
	switch ev.Tag {
	case proto.TagPointerMotion:
		b.pointer.Motion(ev.DX, ev.DY)
		return b.pointer.Frame()

	case proto.TagPointerButton:
		b.pointer.Button(ev.Button, ev.State == 1)
		return b.pointer.Frame()

	case proto.TagPointerAxis:
		if ev.Axis == proto.AxisVertical {
			b.pointer.ScrollVertical(ev.AxisValue)
		} else {
			b.pointer.ScrollHorizontal(ev.AxisValue)
		}
		return b.pointer.Frame()

	case proto.TagPointerAxisStep:
		discrete := float64(ev.AxisStep) / 120.0
		if ev.Axis == proto.AxisVertical {
			b.pointer.ScrollVertical(discrete)
		} else {
			b.pointer.ScrollHorizontal(discrete)
		}
		return b.pointer.Frame()

	case proto.TagKeyboardKey:
		pressed := ev.State == 1
		if !b.keys.ShouldInject(h, ev.Key, pressed) {
			return nil
		}
		return b.keyboard.Key(ev.Key, pressed)

	case proto.TagKeyboardModifiers:
		return b.keyboard.Modifiers(ev.Depressed, ev.Latched, ev.Locked, ev.Group)
	}
	return nil
}

func (b *Backend) ReleaseKeys(h registry.Handle) error {
	for _, key := range b.keys.Drain(h) {
		if err := b.keyboard.Key(key, false); err != nil {
			b.log.Warn().Err(err).Uint32("key", key).Msg("failed to release stuck key")
		}
	}
	return b.keyboard.Modifiers(0, 0, 0, 0)
}

// NeedsKeyRepeat is false: the compositor's own keyboard input method
// handles autorepeat for zwp_virtual_keyboard_v1 devices the same as a
// physical keyboard (SPEC_FULL §4 supplement 5).
func (b *Backend) NeedsKeyRepeat() bool { return false }

func (b *Backend) Terminate() error {
	b.keyboard.Close()
	b.pointer.Close()
	return nil
}
