package emulate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lanbridge/lanbridge/internal/registry"
)

// TestKeyPressIdempotence is testable property 4: for any sequence of
// (key, state) pairs, the number of injected presses/releases per key
// differs by at most one, and the tracked set is never negative (i.e.
// never attempts to release an untracked key twice).
func TestKeyPressIdempotence(t *testing.T) {
	s := NewPressedKeySet()
	h := registry.Handle(1)

	var presses, releases int
	sequence := []struct {
		key     uint32
		pressed bool
	}{
		{30, true}, {30, true}, {30, true}, {30, false}, {30, false},
	}
	for _, step := range sequence {
		if s.ShouldInject(h, step.key, step.pressed) {
			if step.pressed {
				presses++
			} else {
				releases++
			}
		}
	}

	assert.LessOrEqual(t, abs(presses-releases), 1)
	assert.Equal(t, 1, presses)
	assert.Equal(t, 1, releases)
}

// TestReleaseKeysCompleteness is testable property 5: after ReleaseKeys
// (modeled here via Drain), pressed_keys is empty and every previously
// held key was returned for release injection.
func TestReleaseKeysCompleteness(t *testing.T) {
	s := NewPressedKeySet()
	h := registry.Handle(1)

	for _, key := range []uint32{30, 31, 32} {
		s.ShouldInject(h, key, true)
	}

	drained := s.Drain(h)
	assert.ElementsMatch(t, []uint32{30, 31, 32}, drained)

	// Tracked set is now empty: a release for any of those keys is
	// dropped, a press is accepted fresh.
	assert.False(t, s.ShouldInject(h, 30, false))
	assert.True(t, s.ShouldInject(h, 30, true))
}

func TestPressedKeySetIsolatedPerHandle(t *testing.T) {
	s := NewPressedKeySet()
	a, b := registry.Handle(1), registry.Handle(2)

	assert.True(t, s.ShouldInject(a, 30, true))
	assert.True(t, s.ShouldInject(b, 30, true), "handles must track keys independently")

	assert.ElementsMatch(t, []uint32{30}, s.Drain(a))
	assert.ElementsMatch(t, []uint32{30}, s.Drain(b))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
