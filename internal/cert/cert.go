// Package cert manages the device key pair and self-signed certificate
// used to authenticate DTLS peers by fingerprint rather than CA trust
// (spec §4.D, §6 "Persisted state").
//
// Grounded on the teacher's api/pkg/crypto/encryption.go for PEM/x509
// handling idiom, and on canonical-snapd's
// cluster/assemblestate/transport_test.go generateTestCert, which pins
// peers by comparing raw certificate bytes/fingerprint instead of walking
// a CA chain — the same authentication shape spec §4.D requires.
package cert

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

// Fingerprint is a hex-encoded SHA-256 digest of a certificate's raw DER
// bytes — the sole authentication token (spec GLOSSARY "Fingerprint").
type Fingerprint string

// Identity bundles a device's private key and self-signed certificate.
type Identity struct {
	Cert        tls.Certificate
	Fingerprint Fingerprint
}

// LoadOrGenerate reads a PEM key pair and certificate from dir, generating
// and persisting a fresh ed25519 identity on first run (spec §6 "generated
// on first run").
func LoadOrGenerate(dir string) (*Identity, error) {
	keyPath := filepath.Join(dir, "key.pem")
	certPath := filepath.Join(dir, "cert.pem")

	if _, err := os.Stat(keyPath); err == nil {
		return load(keyPath, certPath)
	}

	id, keyPEM, certPEM, err := generate()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cert dir: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("write key: %w", err)
	}
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return nil, fmt.Errorf("write cert: %w", err)
	}
	return id, nil
}

func load(keyPath, certPath string) (*Identity, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	fp, err := fingerprintOf(cert.Certificate[0])
	if err != nil {
		return nil, err
	}
	return &Identity{Cert: cert, Fingerprint: fp}, nil
}

func generate() (*Identity, []byte, []byte, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("generate serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "lanbridged"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(10, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create certificate: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal key: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	tlsCert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}

	fp, err := fingerprintOf(der)
	if err != nil {
		return nil, nil, nil, err
	}

	return &Identity{Cert: tlsCert, Fingerprint: fp}, keyPEM, certPEM, nil
}

func fingerprintOf(der []byte) (Fingerprint, error) {
	sum := sha256.Sum256(der)
	return Fingerprint(hex.EncodeToString(sum[:])), nil
}

// FingerprintOfDER computes the fingerprint of a raw DER certificate, as
// presented during a DTLS handshake, for comparison against the
// authorized set (spec §4.D).
func FingerprintOfDER(der []byte) Fingerprint {
	sum := sha256.Sum256(der)
	return Fingerprint(hex.EncodeToString(sum[:]))
}
