package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(4242), cfg.ListenPort)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadParsesYAMLPeers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
listen_port: 5000
peers:
  - hostname: host-b
    port: 4242
    position: right
    fixed_ips: ["10.0.0.2"]
release_chord: [29, 42, 56, 125]
authorized_fingerprints:
  deadbeef: laptop
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(5000), cfg.ListenPort)
	require.Len(t, cfg.Peers, 1)
	assert.Equal(t, "host-b", cfg.Peers[0].Hostname)
	assert.Equal(t, "right", cfg.Peers[0].Position)
	assert.Equal(t, []uint32{29, 42, 56, 125}, cfg.ReleaseChord)
	assert.Equal(t, "laptop", cfg.AuthorizedFingerprints["deadbeef"])
}

func TestSaveRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Peers = append(cfg.Peers, PeerConfig{Hostname: "host-c", Port: 4242, Position: "left"})

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Peers, 1)
	assert.Equal(t, "host-c", loaded.Peers[0].Hostname)
}
