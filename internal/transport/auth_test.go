package transport

import (
	"testing"

	"github.com/lanbridge/lanbridge/internal/cert"
	"github.com/stretchr/testify/assert"
)

func TestAuthorizedSet(t *testing.T) {
	s := NewAuthorizedSet()
	fp := cert.Fingerprint("deadbeef")

	assert.False(t, s.Allowed(fp))

	s.Authorize(fp, "laptop")
	assert.True(t, s.Allowed(fp))
	assert.Equal(t, "laptop", s.Snapshot()[fp])

	s.Revoke(fp)
	assert.False(t, s.Allowed(fp))
}
