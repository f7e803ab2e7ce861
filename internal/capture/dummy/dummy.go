// Package dummy implements the always-available, inert capture backend
// (SPEC_FULL §4 supplement 2): it never fires Begin and is the terminal
// entry of every backend preference list, so "every real backend failed"
// still yields a running, inert subsystem rather than a crash. Grounded on
// the shape of original_source's src/capture/dummy.rs, expressed here as a
// Go Backend that simply never produces anything on its event channel.
package dummy

import (
	"context"

	"github.com/lanbridge/lanbridge/internal/capture"
	"github.com/lanbridge/lanbridge/internal/proto"
	"github.com/lanbridge/lanbridge/internal/registry"
)

// Backend is a capture.Backend that accepts every command but never
// detects a crossing.
type Backend struct {
	events chan capture.CaptureEvent
}

// Open always succeeds; dummy has no platform dependency.
func Open(_ context.Context) (capture.Backend, error) {
	return &Backend{events: make(chan capture.CaptureEvent)}, nil
}

func (b *Backend) Name() string { return "dummy" }

func (b *Backend) Create(registry.Handle, proto.Position) error { return nil }
func (b *Backend) Destroy(registry.Handle) error                { return nil }
func (b *Backend) Release() error                                { return nil }

func (b *Backend) Events() <-chan capture.CaptureEvent { return b.events }

func (b *Backend) Close() error {
	close(b.events)
	return nil
}
