package frontend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lanbridge/lanbridge/internal/cert"
	"github.com/lanbridge/lanbridge/internal/coordinator"
	"github.com/lanbridge/lanbridge/internal/proto"
	"github.com/lanbridge/lanbridge/internal/registry"
)

// Server accepts frontend connections (Unix domain socket on Unix,
// localhost TCP on Windows — spec §6) and bridges them to the
// coordinator's request/notification channels.
type Server struct {
	log     zerolog.Logger
	network string
	address string
	coord   *coordinator.Coordinator
	auth    AuthorizedSetter

	mu       sync.Mutex
	listener net.Listener
	clients  map[net.Conn]struct{}
}

// AuthorizedSetter is the subset of transport.AuthorizedSet the frontend
// needs, kept as an interface here so this package does not import
// transport solely for a mutation entry point.
type AuthorizedSetter interface {
	Authorize(fp cert.Fingerprint, description string)
	Revoke(fp cert.Fingerprint)
}

// New constructs a Server. network/address follow net.Listen conventions
// ("unix", path) or ("tcp", "127.0.0.1:5252").
func New(log zerolog.Logger, network, address string, coord *coordinator.Coordinator, auth AuthorizedSetter) *Server {
	return &Server{
		log:     log.With().Str("component", "frontend").Logger(),
		network: network,
		address: address,
		coord:   coord,
		auth:    auth,
		clients: make(map[net.Conn]struct{}),
	}
}

// Run binds the socket, accepts clients, and fans out notifications until
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen(s.network, s.address)
	if err != nil {
		return fmt.Errorf("listen %s %s: %w", s.network, s.address, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go s.broadcastLoop(ctx)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		s.mu.Lock()
		s.clients[conn] = struct{}{}
		s.mu.Unlock()
		go s.handleClient(ctx, conn)
	}
}

func (s *Server) handleClient(ctx context.Context, conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var req WireRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			s.log.Warn().Err(err).Msg("malformed frontend request")
			continue
		}
		s.dispatch(ctx, conn, req)
	}
}

func (s *Server) dispatch(ctx context.Context, conn net.Conn, req WireRequest) {
	done := make(chan coordinator.Result, 1)
	creq := coordinator.Request{Done: done}

	switch req.Type {
	case TypeCreatePeer:
		creq.Kind = coordinator.ReqCreatePeer
		creq.Config = toRegistryConfig(req)
	case TypeDeletePeer:
		creq.Kind = coordinator.ReqDeletePeer
		creq.Handle = registry.Handle(req.Handle)
	case TypeActivatePeer:
		creq.Kind = coordinator.ReqActivatePeer
		creq.Handle = registry.Handle(req.Handle)
	case TypeDeactivatePeer:
		creq.Kind = coordinator.ReqDeactivatePeer
		creq.Handle = registry.Handle(req.Handle)
	case TypeUpdatePeer:
		creq.Kind = coordinator.ReqUpdatePeer
		creq.Handle = registry.Handle(req.Handle)
		creq.Config = toRegistryConfig(req)
	case TypeChangePort:
		creq.Kind = coordinator.ReqChangePort
		creq.Port = req.Port
	case TypeAuthorizeFingerprint:
		s.auth.Authorize(cert.Fingerprint(req.Fingerprint), req.Description)
		creq.Kind = coordinator.ReqAuthorizeFingerprint
		creq.FP = cert.Fingerprint(req.Fingerprint)
		creq.FPDesc = req.Description
	case TypeRemoveFingerprint:
		s.auth.Revoke(cert.Fingerprint(req.Fingerprint))
		creq.Kind = coordinator.ReqRemoveFingerprint
		creq.FP = cert.Fingerprint(req.Fingerprint)
	case TypeAskState:
		creq.Kind = coordinator.ReqAskState
	case TypeResolveDNS:
		creq.Kind = coordinator.ReqResolveDNS
		creq.Handle = registry.Handle(req.Handle)
		creq.Host = req.Hostname
	default:
		s.log.Warn().Str("type", req.Type).Msg("unknown frontend request type")
		return
	}

	select {
	case s.coord.Requests() <- creq:
	case <-ctx.Done():
		return
	}

	select {
	case res := <-done:
		s.writeResultAsState(conn, req.RequestID, res)
	case <-ctx.Done():
	}
}

func toRegistryConfig(req WireRequest) registry.Config {
	cfg := registry.Config{
		Hostname:  req.Hostname,
		Port:      req.Port,
		Position:  parsePosition(req.Position),
		EnterHook: req.EnterHook,
	}
	for _, raw := range req.FixedIPs {
		if addr, err := netip.ParseAddr(raw); err == nil {
			cfg.FixedIPs = append(cfg.FixedIPs, addr)
		}
	}
	return cfg
}

func parsePosition(s string) proto.Position {
	switch s {
	case "right":
		return proto.PositionRight
	case "top":
		return proto.PositionTop
	case "bottom":
		return proto.PositionBottom
	default:
		return proto.PositionLeft
	}
}

func (s *Server) writeResultAsState(conn net.Conn, requestID string, res coordinator.Result) {
	if res.Err != nil {
		s.writeLine(conn, WireNotification{Type: TypePeerStateChanged, RequestID: requestID, Error: res.Err.Error()})
		return
	}
	if res.Handle != 0 {
		s.writeLine(conn, WireNotification{Type: TypePeerCreated, RequestID: requestID, Handle: uint64(res.Handle)})
		return
	}
	if len(res.Peers) == 0 {
		// Every request carries exactly one reply line, even ReqAskState
		// against an empty registry, so a client correlating by RequestID
		// never blocks waiting for a line that was never coming.
		s.writeLine(conn, WireNotification{Type: TypePeerStateChanged, RequestID: requestID})
		return
	}
	for _, p := range res.Peers {
		s.writeLine(conn, WireNotification{
			Type:      TypePeerStateChanged,
			RequestID: requestID,
			Handle:    uint64(p.Handle),
			Hostname:  p.Config.Hostname,
			Position:  p.Config.Position.String(),
			Active:    p.State.Active,
		})
	}
}

// broadcastLoop fans out every coordinator.Notification to every
// currently-connected client as one JSON line.
func (s *Server) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-s.coord.Notifications():
			if !ok {
				return
			}
			wire := toWireNotification(n)
			s.mu.Lock()
			for conn := range s.clients {
				s.writeLine(conn, wire)
			}
			s.mu.Unlock()
		}
	}
}

func toWireNotification(n coordinator.Notification) WireNotification {
	return WireNotification{
		Type:        notificationTypeName(n.Kind),
		Handle:      uint64(n.Handle),
		Hostname:    n.Peer.Config.Hostname,
		Position:    n.Peer.Config.Position.String(),
		Active:      n.Peer.State.Active,
		Port:        n.Port,
		Error:       n.Err,
		Status:      n.Status,
		Fingerprint: string(n.Fingerprint),
		Description: n.Description,
	}
}

func notificationTypeName(k coordinator.NotificationKind) string {
	switch k {
	case coordinator.NotifyPeerCreated:
		return TypePeerCreated
	case coordinator.NotifyPeerDeleted:
		return TypePeerDeleted
	case coordinator.NotifyPeerStateChanged:
		return TypePeerStateChanged
	case coordinator.NotifyListenPortChanged:
		return TypeListenPortChanged
	case coordinator.NotifyCaptureStatusChanged:
		return TypeCaptureStatusChanged
	case coordinator.NotifyEmulationStatusChanged:
		return TypeEmulationStatusChanged
	case coordinator.NotifyAuthorizedFingerprintsChanged:
		return TypeAuthorizedFingerprintsChanged
	case coordinator.NotifyLocalFingerprint:
		return TypeLocalFingerprint
	case coordinator.NotifyIncomingPeerConnected:
		return TypeIncomingPeerConnected
	case coordinator.NotifyIncomingPeerDisconnected:
		return TypeIncomingPeerDisconnected
	case coordinator.NotifyFingerprintRejected:
		return TypeFingerprintRejected
	default:
		return "unknown_" + strconv.Itoa(int(k))
	}
}

func (s *Server) writeLine(conn net.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		s.log.Debug().Err(err).Msg("failed to write to frontend client")
	}
}

// Close shuts down the listener and disconnects every client.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		_ = conn.Close()
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
