// Package frontend implements the line-delimited JSON request/notification
// socket (spec §4.G, §6 "Frontend socket"): CLI and GUI clients connect,
// send one JSON request per line, and receive one JSON notification per
// line for every coordinator state change.
package frontend

// WireRequest is one line of client input. Type selects which fields are
// meaningful, mirroring spec §4.G's request enumeration. RequestID is a
// client-generated ID (the lanbridged client commands use a google/uuid
// string) echoed back on the reply lines the server writes for this
// request, so a GUI frontend holding several in-flight requests can
// correlate replies without relying on handle identity alone. Broadcast
// notifications, including those a request triggers, carry no RequestID.
type WireRequest struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`

	Handle      uint64   `json:"handle,omitempty"`
	Hostname    string   `json:"hostname,omitempty"`
	Port        uint16   `json:"port,omitempty"`
	Position    string   `json:"position,omitempty"`
	FixedIPs    []string `json:"fixed_ips,omitempty"`
	EnterHook   string   `json:"enter_hook,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	Description string   `json:"description,omitempty"`
}

// WireNotification is one line of server output, mirroring spec §4.G's
// notification enumeration.
type WireNotification struct {
	Type        string `json:"type"`
	RequestID   string `json:"request_id,omitempty"`
	Handle      uint64 `json:"handle,omitempty"`
	Hostname    string `json:"hostname,omitempty"`
	Position    string `json:"position,omitempty"`
	Active      bool   `json:"active,omitempty"`
	Port        uint16 `json:"port,omitempty"`
	Error       string `json:"error,omitempty"`
	Status      string `json:"status,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Description string `json:"description,omitempty"`
}

// Request type names (spec §4.G).
const (
	TypeCreatePeer            = "create_peer"
	TypeDeletePeer             = "delete_peer"
	TypeActivatePeer           = "activate"
	TypeDeactivatePeer         = "deactivate"
	TypeUpdatePeer             = "update"
	TypeChangePort             = "change_port"
	TypeAuthorizeFingerprint   = "authorize_fingerprint"
	TypeRemoveFingerprint      = "remove_fingerprint"
	TypeAskState               = "ask_state"
	TypeResolveDNS             = "resolve_dns"
)

// Notification type names (spec §4.G).
const (
	TypePeerCreated                   = "peer_created"
	TypePeerDeleted                   = "peer_deleted"
	TypePeerStateChanged              = "peer_state_changed"
	TypeListenPortChanged             = "listen_port_changed"
	TypeCaptureStatusChanged          = "capture_status_changed"
	TypeEmulationStatusChanged        = "emulation_status_changed"
	TypeAuthorizedFingerprintsChanged = "authorized_fingerprints_changed"
	TypeLocalFingerprint              = "local_fingerprint"
	TypeIncomingPeerConnected         = "incoming_peer_connected"
	TypeIncomingPeerDisconnected      = "incoming_peer_disconnected"
	TypeFingerprintRejected           = "fingerprint_rejected"
)
