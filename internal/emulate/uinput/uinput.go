// Package uinput implements the generic-Linux emulation backend via
// /dev/uinput, for sessions without a wlroots-capable compositor (X11,
// headless). Generalized from the teacher's api/pkg/desktop/uinput.go
// VirtualInput type (which wrapped github.com/bendahl/uinput's Keyboard
// and Mouse for a single HTTP-driven session) into the peer-keyed
// Emulator contract.
package uinput

import (
	"fmt"

	"github.com/bendahl/uinput"
	"github.com/rs/zerolog"

	"github.com/lanbridge/lanbridge/internal/emulate"
	"github.com/lanbridge/lanbridge/internal/proto"
	"github.com/lanbridge/lanbridge/internal/registry"
)

// Backend drives one shared virtual keyboard and mouse via /dev/uinput.
type Backend struct {
	log      zerolog.Logger
	keyboard uinput.Keyboard
	mouse    uinput.Mouse
	keys     *emulate.PressedKeySet
}

// Open creates the virtual devices. Returns emulate.ErrBackendUnavailable
// if /dev/uinput is missing or not writable (common in unprivileged
// containers), mirroring the teacher's NewVirtualInput error path.
func Open(log zerolog.Logger) (emulate.Backend, error) {
	kb, err := uinput.CreateKeyboard("/dev/uinput", []byte("lanbridged-keyboard"))
	if err != nil {
		return nil, fmt.Errorf("%w: create virtual keyboard: %v", emulate.ErrBackendUnavailable, err)
	}
	mouse, err := uinput.CreateMouse("/dev/uinput", []byte("lanbridged-mouse"))
	if err != nil {
		kb.Close()
		return nil, fmt.Errorf("%w: create virtual mouse: %v", emulate.ErrBackendUnavailable, err)
	}
	return &Backend{
		log:      log.With().Str("backend", "uinput").Logger(),
		keyboard: kb,
		mouse:    mouse,
		keys:     emulate.NewPressedKeySet(),
	}, nil
}

func (b *Backend) Name() string { return "uinput" }

func (b *Backend) Create(registry.Handle) error  { return nil }
func (b *Backend) Destroy(h registry.Handle) error {
	return b.ReleaseKeys(h)
}

func (b *Backend) Consume(h registry.Handle, ev proto.Event) error {
	switch ev.Tag {
	case proto.TagPointerMotion:
		return b.mouse.Move(int32(ev.DX), int32(ev.DY))

	case proto.TagPointerButton:
		return b.button(ev.Button, ev.State == 1)

	case proto.TagPointerAxis:
		steps := int32(ev.AxisValue)
		if ev.Axis == proto.AxisVertical {
			return b.mouse.Wheel(false, steps)
		}
		return b.mouse.Wheel(true, steps)

	case proto.TagPointerAxisStep:
		steps := ev.AxisStep / 120
		if ev.Axis == proto.AxisVertical {
			return b.mouse.Wheel(false, steps)
		}
		return b.mouse.Wheel(true, steps)

	case proto.TagKeyboardKey:
		pressed := ev.State == 1
		if !b.keys.ShouldInject(h, ev.Key, pressed) {
			return nil
		}
		if pressed {
			return b.keyboard.KeyDown(int(ev.Key))
		}
		return b.keyboard.KeyUp(int(ev.Key))

	case proto.TagKeyboardModifiers:
		// uinput has no modifier-mask API; modifier state is implied by
		// the individual key down/up events already injected.
		return nil
	}
	return nil
}

func (b *Backend) button(code uint32, pressed bool) error {
	var press, release func() error
	switch code {
	case 272: // BTN_LEFT
		press, release = b.mouse.LeftPress, b.mouse.LeftRelease
	case 273: // BTN_RIGHT
		press, release = b.mouse.RightPress, b.mouse.RightRelease
	case 274: // BTN_MIDDLE
		press, release = b.mouse.MiddlePress, b.mouse.MiddleRelease
	default:
		return nil // side/forward buttons unsupported by uinput.Mouse
	}
	if pressed {
		return press()
	}
	return release()
}

func (b *Backend) ReleaseKeys(h registry.Handle) error {
	for _, key := range b.keys.Drain(h) {
		if err := b.keyboard.KeyUp(int(key)); err != nil {
			b.log.Warn().Err(err).Uint32("key", key).Msg("failed to release stuck key")
		}
	}
	return nil
}

// NeedsKeyRepeat is false: uinput's injected device is treated by the
// kernel like any other keyboard and autorepeats through the normal input
// subsystem (SPEC_FULL §4 supplement 5).
func (b *Backend) NeedsKeyRepeat() bool { return false }

func (b *Backend) Terminate() error {
	b.keyboard.Close()
	b.mouse.Close()
	return nil
}
