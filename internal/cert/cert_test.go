package cert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrGenerateCreatesAndPersists(t *testing.T) {
	dir := t.TempDir()

	id1, err := LoadOrGenerate(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, id1.Fingerprint)

	id2, err := LoadOrGenerate(dir)
	require.NoError(t, err)
	assert.Equal(t, id1.Fingerprint, id2.Fingerprint, "second load must reuse the persisted identity")
}

func TestFingerprintOfDERMatchesGeneratedIdentity(t *testing.T) {
	dir := t.TempDir()
	id, err := LoadOrGenerate(dir)
	require.NoError(t, err)

	fp := FingerprintOfDER(id.Cert.Certificate[0])
	assert.Equal(t, id.Fingerprint, fp)
}

func TestDifferentIdentitiesHaveDifferentFingerprints(t *testing.T) {
	id1, err := LoadOrGenerate(t.TempDir())
	require.NoError(t, err)
	id2, err := LoadOrGenerate(t.TempDir())
	require.NoError(t, err)

	assert.NotEqual(t, id1.Fingerprint, id2.Fingerprint)
}
