// Package emulate defines the emulation-backend contract (spec §4.C):
// injecting events received from a peer into the local desktop session
// under a synthetic identity, with per-handle pressed-key tracking so that
// redundant press/release pairs never reach the platform.
package emulate

import (
	"errors"
	"sync"

	"github.com/lanbridge/lanbridge/internal/proto"
	"github.com/lanbridge/lanbridge/internal/registry"
)

// ErrBackendUnavailable mirrors capture.ErrBackendUnavailable for the
// emulation side's own preference-list fallback (spec §4.C, §7).
var ErrBackendUnavailable = errors.New("emulate: backend unavailable")

// Backend is the contract every platform-specific emulation implementation
// satisfies.
type Backend interface {
	Name() string

	// Create prepares per-handle state for handle (no platform resource
	// is necessarily allocated yet; most backends are resource-free
	// until the first Consume).
	Create(handle registry.Handle) error

	// Destroy releases any per-handle state, implicitly releasing keys
	// first if any are pressed.
	Destroy(handle registry.Handle) error

	// Consume injects ev as if it originated from handle. Implementations
	// must deduplicate press/release pairs per handle before injecting
	// (spec §4.C, testable property 4).
	Consume(handle registry.Handle, ev proto.Event) error

	// ReleaseKeys injects a release for every key currently held for
	// handle and empties the tracked set (spec §4.C, testable property 5).
	// Only the wlroots backend follows this with a modifier-reset event;
	// the uinput and portal backends have no modifier API and send none.
	ReleaseKeys(handle registry.Handle) error

	// NeedsKeyRepeat reports whether keys injected by this backend lack
	// OS autorepeat (SPEC_FULL §4 supplement 5). Every backend in this
	// module returns false, and no synthetic key-repeat task exists or
	// consults this method.
	NeedsKeyRepeat() bool

	// Terminate tears down all native resources.
	Terminate() error
}

// PressedKeySet tracks, per handle, which key codes are currently held so
// Consume and ReleaseKeys can dedupe/complete correctly. Embedded by each
// concrete backend rather than reimplemented three times.
type PressedKeySet struct {
	mu    sync.Mutex
	byHandle map[registry.Handle]map[uint32]struct{}
}

// NewPressedKeySet constructs an empty tracker.
func NewPressedKeySet() *PressedKeySet {
	return &PressedKeySet{byHandle: make(map[registry.Handle]map[uint32]struct{})}
}

// ShouldInject reports whether a (key, state) pair should actually be
// forwarded to the platform, and updates the tracked set accordingly: a
// press for an already-held key, or a release for a key not held, is
// dropped (testable property 4).
func (s *PressedKeySet) ShouldInject(handle registry.Handle, key uint32, pressed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.byHandle[handle]
	if !ok {
		set = make(map[uint32]struct{})
		s.byHandle[handle] = set
	}
	_, held := set[key]
	if pressed {
		if held {
			return false
		}
		set[key] = struct{}{}
		return true
	}
	if !held {
		return false
	}
	delete(set, key)
	return true
}

// Drain returns every key currently held for handle and empties the set,
// for ReleaseKeys to inject completion releases.
func (s *PressedKeySet) Drain(handle registry.Handle) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.byHandle[handle]
	if !ok {
		return nil
	}
	keys := make([]uint32, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	delete(s.byHandle, handle)
	return keys
}

// Forget drops all tracked state for handle without injecting anything.
// No backend calls it: their Destroy methods call ReleaseKeys, whose Drain
// already drops the handle's state.
func (s *PressedKeySet) Forget(handle registry.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byHandle, handle)
}
