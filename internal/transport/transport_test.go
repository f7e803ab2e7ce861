package transport

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanbridge/lanbridge/internal/cert"
)

func TestVerifyPeerCertificateRejectsUnauthorized(t *testing.T) {
	id, err := cert.LoadOrGenerate(t.TempDir())
	require.NoError(t, err)

	auth := NewAuthorizedSet()
	tr := New(zerolog.Nop(), id, auth)

	err = tr.verifyPeerCertificate([][]byte{id.Cert.Certificate[0]}, nil)
	assert.ErrorIs(t, err, ErrFingerprintUnknown, "unauthorized fingerprint must never pass a handshake")
}

func TestVerifyPeerCertificateReportsRejectedFingerprint(t *testing.T) {
	id, err := cert.LoadOrGenerate(t.TempDir())
	require.NoError(t, err)

	tr := New(zerolog.Nop(), id, NewAuthorizedSet())

	err = tr.verifyPeerCertificate([][]byte{id.Cert.Certificate[0]}, nil)
	require.ErrorIs(t, err, ErrFingerprintUnknown)

	select {
	case rej := <-tr.Rejected:
		assert.Equal(t, id.Fingerprint, rej.Fingerprint)
	default:
		t.Fatal("expected a RejectedHandshake on tr.Rejected")
	}
}

func TestVerifyPeerCertificateAcceptsAuthorized(t *testing.T) {
	id, err := cert.LoadOrGenerate(t.TempDir())
	require.NoError(t, err)

	auth := NewAuthorizedSet()
	auth.Authorize(id.Fingerprint, "test peer")
	tr := New(zerolog.Nop(), id, auth)

	err = tr.verifyPeerCertificate([][]byte{id.Cert.Certificate[0]}, nil)
	assert.NoError(t, err)
}

func TestVerifyPeerCertificateRejectsEmpty(t *testing.T) {
	id, err := cert.LoadOrGenerate(t.TempDir())
	require.NoError(t, err)

	tr := New(zerolog.Nop(), id, NewAuthorizedSet())
	err = tr.verifyPeerCertificate(nil, nil)
	assert.ErrorIs(t, err, ErrFingerprintUnknown)
}
