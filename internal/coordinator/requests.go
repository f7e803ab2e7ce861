package coordinator

import (
	"github.com/lanbridge/lanbridge/internal/cert"
	"github.com/lanbridge/lanbridge/internal/registry"
)

// RequestKind enumerates the frontend-originated operations the
// coordinator accepts (spec §4.G request enumeration).
type RequestKind int

const (
	ReqCreatePeer RequestKind = iota
	ReqDeletePeer
	ReqActivatePeer
	ReqDeactivatePeer
	ReqUpdatePeer
	ReqChangePort
	ReqAuthorizeFingerprint
	ReqRemoveFingerprint
	ReqAskState
	ReqResolveDNS
)

// Request is a single frontend-originated operation, delivered to the
// coordinator's Run loop over a channel (message-passing, never direct
// registry access — spec §4.E).
type Request struct {
	Kind RequestKind

	Handle registry.Handle
	Config registry.Config // ReqCreatePeer, ReqUpdatePeer (partial fields)
	Port   uint16          // ReqChangePort
	FP     cert.Fingerprint
	FPDesc string
	Host   string // ReqResolveDNS

	// Done receives exactly one Result and is then never written again.
	Done chan Result
}

// Result is the synchronous reply to a Request.
type Result struct {
	Handle registry.Handle
	Peers  []*registry.Peer
	Err    error
}

// reply sends r on req.Done without blocking forever if the caller gave up.
func reply(req Request, r Result) {
	if req.Done == nil {
		return
	}
	select {
	case req.Done <- r:
	default:
	}
}

// pingTick is not used: ping rounds are started by the Run loop's own
// ticker, so no separate liveness goroutine sends messages to it.
type pingTick struct{}

// reenableSignal is received by the Run loop as an operator "re-enable"
// request; handleReenable only emits a notification for it and does not
// recreate any backend.
type reenableSignal struct {
	capture bool
}
