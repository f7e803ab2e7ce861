// Package dummy implements the always-available, inert emulation backend
// (SPEC_FULL §4 supplement 2) — the terminal entry of every emulation
// preference list. It tracks pressed keys (so testable properties 4/5
// still hold against it in tests) but injects nothing anywhere.
package dummy

import (
	"github.com/lanbridge/lanbridge/internal/emulate"
	"github.com/lanbridge/lanbridge/internal/proto"
	"github.com/lanbridge/lanbridge/internal/registry"
)

// Backend satisfies emulate.Backend without touching any platform API.
type Backend struct {
	keys *emulate.PressedKeySet
}

// Open always succeeds.
func Open() (emulate.Backend, error) {
	return &Backend{keys: emulate.NewPressedKeySet()}, nil
}

func (b *Backend) Name() string { return "dummy" }

func (b *Backend) Create(registry.Handle) error  { return nil }
func (b *Backend) Destroy(h registry.Handle) error {
	return b.ReleaseKeys(h)
}

func (b *Backend) Consume(h registry.Handle, ev proto.Event) error {
	if ev.Tag == proto.TagKeyboardKey {
		b.keys.ShouldInject(h, ev.Key, ev.State == 1)
	}
	return nil
}

func (b *Backend) ReleaseKeys(h registry.Handle) error {
	b.keys.Drain(h)
	return nil
}

func (b *Backend) NeedsKeyRepeat() bool { return false }
func (b *Backend) Terminate() error     { return nil }
