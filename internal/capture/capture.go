// Package capture defines the capture-backend contract (spec §4.B): a
// uniform interface over platform-specific ways of detecting a barrier
// crossing and then exclusively possessing local input devices.
package capture

import (
	"context"
	"errors"

	"github.com/lanbridge/lanbridge/internal/proto"
	"github.com/lanbridge/lanbridge/internal/registry"
)

// ErrBackendUnavailable is returned by Open when a backend cannot
// initialize on the current platform/session (spec §4.B "Failure
// semantics"); the caller tries the next backend in its preference list.
var ErrBackendUnavailable = errors.New("capture: backend unavailable")

// EventKind distinguishes the three shapes a capture stream item can take.
type EventKind int

const (
	// Begin fires once a barrier crossing is detected; capture becomes
	// exclusive for Handle until Release is called.
	Begin EventKind = iota
	// Input carries a forwarded input event while capture is held.
	Input
	// Err terminates the stream; the coordinator reports capture as
	// "disabled" and does not recreate the backend.
	Err
)

// CaptureEvent is one item of the lazy (handle, event) stream a Backend
// produces (spec §4.B contract).
type CaptureEvent struct {
	Kind   EventKind
	Handle registry.Handle
	Event  proto.Event
	Err    error
}

// Backend is the contract every platform-specific capture implementation
// satisfies: create/destroy named barriers, release the current capture,
// and produce a stream of CaptureEvents. At most one Begin is outstanding
// before Release returns the device to the local user.
type Backend interface {
	// Name identifies the backend for logging and frontend status.
	Name() string

	// Create arms a barrier at position for handle. No backend in this
	// module watches the physical display layout, so barriers are not
	// rebuilt when it changes.
	Create(handle registry.Handle, position proto.Position) error

	// Destroy removes the barrier for handle. If handle is currently
	// capturing, Destroy implicitly releases first (spec §4.B).
	Destroy(handle registry.Handle) error

	// Release returns the local devices to the user; a no-op if nothing
	// is currently captured.
	Release() error

	// Events returns the capture stream. Call once; the channel is
	// closed when Close is called or the backend's native resources are
	// gone.
	Events() <-chan CaptureEvent

	// Close tears down native resources (ungrab, destroy virtual
	// devices) and closes the Events channel. Called on cancellation
	// (spec §5).
	Close() error
}

// Opener constructs a Backend, used by the per-OS preference list (spec §9
// "tagged-variant enum of backend handles" / static preference list).
type Opener func(ctx context.Context) (Backend, error)
