package coordinator

import (
	"github.com/lanbridge/lanbridge/internal/cert"
	"github.com/lanbridge/lanbridge/internal/registry"
)

// NotificationKind enumerates the frontend-facing notifications the
// coordinator emits (spec §4.G notification enumeration).
type NotificationKind int

const (
	NotifyPeerCreated NotificationKind = iota
	NotifyPeerDeleted
	NotifyPeerStateChanged
	NotifyListenPortChanged
	NotifyCaptureStatusChanged
	NotifyEmulationStatusChanged
	NotifyAuthorizedFingerprintsChanged
	NotifyLocalFingerprint
	NotifyIncomingPeerConnected
	NotifyIncomingPeerDisconnected
	NotifyFingerprintRejected
)

// Notification is a single frontend-facing event.
type Notification struct {
	Kind        NotificationKind
	Handle      registry.Handle
	Peer        registry.Peer
	Port        uint16
	Err         string // non-empty on a failed port change (spec scenario f)
	Status      string // "awaiting_leave", "sending", "receiving", "disabled" or "re-enable-requested"
	Fingerprint cert.Fingerprint
	Description string
}

func (c *Coordinator) notify(n Notification) {
	select {
	case c.notifications <- n:
	default:
		c.log.Warn().Msg("notification channel full, dropping")
	}
}

// Notifications returns the stream consumed by the frontend surface.
func (c *Coordinator) Notifications() <-chan Notification { return c.notifications }
