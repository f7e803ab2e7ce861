package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lanbridge/lanbridge/internal/config"
	"github.com/lanbridge/lanbridge/internal/frontend"
)

// replyQuietPeriod bounds how long a client command waits for further
// WireNotification lines sharing its RequestID after the first one
// arrives. The frontend connection stays open for live notifications
// after a reply (spec §4.G), so a client reading a multi-line reply (e.g.
// ReqAskState over several peers) cannot simply wait for EOF.
const replyQuietPeriod = 200 * time.Millisecond

// dialFrontend opens a connection to a running daemon's frontend socket,
// the client-side counterpart of frontendAddr in daemon.go.
func dialFrontend() (net.Conn, error) {
	path := config.DefaultSocketPath()
	if runtime.GOOS == "windows" {
		return net.Dial("tcp", path)
	}
	return net.Dial("unix", path)
}

// sendRequest writes one WireRequest line, then prints every
// WireNotification line the daemon sends back carrying the same
// RequestID, until one arrives with a non-empty Error, the connection
// closes, or no further line arrives within replyQuietPeriod after the
// first reply. This mirrors the single-request/single-reply shape the
// coordinator's Request/Result pair already guarantees server-side.
func sendRequest(cmd *cobra.Command, req frontend.WireRequest) error {
	conn, err := dialFrontend()
	if err != nil {
		return fmt.Errorf("connect to lanbridged: %w", err)
	}
	defer conn.Close()

	req.RequestID = uuid.NewString()
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	seen := false
	for {
		if seen {
			_ = conn.SetReadDeadline(time.Now().Add(replyQuietPeriod))
		}
		if !scanner.Scan() {
			if seen {
				return nil
			}
			return scanner.Err()
		}

		var n frontend.WireNotification
		if err := json.Unmarshal(scanner.Bytes(), &n); err != nil {
			continue
		}
		if n.RequestID != req.RequestID {
			continue
		}
		if n.Error != "" {
			return fmt.Errorf("%s", n.Error)
		}
		seen = true
		cmd.Println(describeNotification(n))
	}
}

func describeNotification(n frontend.WireNotification) string {
	switch n.Type {
	case frontend.TypePeerCreated:
		return fmt.Sprintf("created peer handle=%d", n.Handle)
	case frontend.TypePeerStateChanged:
		return fmt.Sprintf("peer %d: hostname=%s position=%s active=%v", n.Handle, n.Hostname, n.Position, n.Active)
	default:
		return n.Type
	}
}

func newConnectCmd() *cobra.Command {
	var hostname string
	var port uint16
	var position string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Add and activate a peer by hostname",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sendRequest(cmd, frontend.WireRequest{
				Type:     frontend.TypeCreatePeer,
				Hostname: hostname,
				Port:     port,
				Position: position,
			}); err != nil {
				fatalf(cmd, "%v", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&hostname, "host", "", "peer hostname or address")
	cmd.Flags().Uint16Var(&port, "port", 4242, "peer listen port")
	cmd.Flags().StringVar(&position, "position", "right", "screen-edge position: left|right|top|bottom")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}

func newDisconnectCmd() *cobra.Command {
	var handle uint64
	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Delete a peer by handle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sendRequest(cmd, frontend.WireRequest{Type: frontend.TypeDeletePeer, Handle: handle}); err != nil {
				fatalf(cmd, "%v", err)
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&handle, "handle", 0, "peer handle")
	_ = cmd.MarkFlagRequired("handle")
	return cmd
}

func newActivateCmd() *cobra.Command {
	var handle uint64
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Activate a configured peer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sendRequest(cmd, frontend.WireRequest{Type: frontend.TypeActivatePeer, Handle: handle}); err != nil {
				fatalf(cmd, "%v", err)
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&handle, "handle", 0, "peer handle")
	_ = cmd.MarkFlagRequired("handle")
	return cmd
}

func newDeactivateCmd() *cobra.Command {
	var handle uint64
	cmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate a configured peer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sendRequest(cmd, frontend.WireRequest{Type: frontend.TypeDeactivatePeer, Handle: handle}); err != nil {
				fatalf(cmd, "%v", err)
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&handle, "handle", 0, "peer handle")
	_ = cmd.MarkFlagRequired("handle")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured and incoming peers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sendRequest(cmd, frontend.WireRequest{Type: frontend.TypeAskState}); err != nil {
				fatalf(cmd, "%v", err)
			}
			return nil
		},
	}
}

func newSetPortCmd() *cobra.Command {
	var port uint16
	cmd := &cobra.Command{
		Use:   "set-port",
		Short: "Change the UDP listen port",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sendRequest(cmd, frontend.WireRequest{Type: frontend.TypeChangePort, Port: port}); err != nil {
				fatalf(cmd, "%v", err)
			}
			return nil
		},
	}
	cmd.Flags().Uint16Var(&port, "port", 4242, "new listen port")
	_ = cmd.MarkFlagRequired("port")
	return cmd
}

func newAuthorizeCmd() *cobra.Command {
	var fingerprint, description string
	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Authorize a peer's certificate fingerprint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sendRequest(cmd, frontend.WireRequest{
				Type:        frontend.TypeAuthorizeFingerprint,
				Fingerprint: fingerprint,
				Description: description,
			}); err != nil {
				fatalf(cmd, "%v", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "hex SHA-256 certificate fingerprint")
	cmd.Flags().StringVar(&description, "description", "", "free-form label for this peer")
	_ = cmd.MarkFlagRequired("fingerprint")
	return cmd
}
