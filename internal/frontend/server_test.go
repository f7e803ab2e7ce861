package frontend

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	capturedummy "github.com/lanbridge/lanbridge/internal/capture/dummy"
	"github.com/lanbridge/lanbridge/internal/cert"
	"github.com/lanbridge/lanbridge/internal/coordinator"
	emulatedummy "github.com/lanbridge/lanbridge/internal/emulate/dummy"
	"github.com/lanbridge/lanbridge/internal/registry"
	"github.com/lanbridge/lanbridge/internal/transport"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	identity, err := cert.LoadOrGenerate(t.TempDir())
	require.NoError(t, err)

	capBack, err := capturedummy.Open(context.Background())
	require.NoError(t, err)
	emu, err := emulatedummy.Open()
	require.NoError(t, err)

	reg := registry.New(16)
	auth := transport.NewAuthorizedSet()
	tr := transport.New(zerolog.Nop(), identity, auth)

	coord := coordinator.New(coordinator.Config{
		Log:       zerolog.Nop(),
		Registry:  reg,
		Capture:   capBack,
		Emulator:  emu,
		Transport: tr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = coord.Run(ctx) }()

	socketPath := filepath.Join(t.TempDir(), "lanbridged.sock")
	server := New(zerolog.Nop(), "unix", socketPath, coord, auth)

	go func() { _ = server.Run(ctx) }()
	t.Cleanup(func() { _ = server.Close() })

	// Give the listener a moment to bind before the test dials it.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", socketPath); err == nil {
			conn.Close()
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	return server, socketPath
}

func TestServerCreatePeerRoundTrip(t *testing.T) {
	_, socketPath := startTestServer(t)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	req := WireRequest{Type: TypeCreatePeer, RequestID: "req-1", Hostname: "host-b", Port: 4242, Position: "right"}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	data = append(data, '\n')
	_, err = conn.Write(data)
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())

	var notif WireNotification
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &notif))
	require.Equal(t, TypePeerCreated, notif.Type)
	require.Equal(t, "req-1", notif.RequestID)
	require.NotZero(t, notif.Handle)
}

func TestServerAskStateRoundTrip(t *testing.T) {
	_, socketPath := startTestServer(t)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	req := WireRequest{Type: TypeAskState, RequestID: "req-2"}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	data = append(data, '\n')
	_, err = conn.Write(data)
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())

	var notif WireNotification
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &notif))
	require.Equal(t, "req-2", notif.RequestID)
}
