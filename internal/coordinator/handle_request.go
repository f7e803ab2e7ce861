package coordinator

import (
	"context"

	"github.com/lanbridge/lanbridge/internal/registry"
)

// handleRequest dispatches one frontend-originated Request (spec §4.G),
// mutating the registry — which only this goroutine ever touches — and
// replying synchronously via req.Done.
func (c *Coordinator) handleRequest(ctx context.Context, req Request) {
	switch req.Kind {
	case ReqCreatePeer:
		h := c.reg.Allocate(req.Config)
		reply(req, Result{Handle: h})

	case ReqDeletePeer:
		if req.Handle == c.sendingTo {
			_ = c.captureBack.Release()
			c.state = Receiving
			c.sendingTo = 0
		}
		_ = c.captureBack.Destroy(req.Handle)
		err := c.reg.Delete(req.Handle)
		reply(req, Result{Err: err})

	case ReqActivatePeer:
		err := c.reg.Activate(req.Handle)
		if err == nil {
			if peer, getErr := c.reg.Get(req.Handle); getErr == nil {
				_ = c.captureBack.Create(req.Handle, peer.Config.Position)
			}
		}
		reply(req, Result{Err: err})

	case ReqDeactivatePeer:
		if req.Handle == c.sendingTo {
			_ = c.captureBack.Release()
			c.state = Receiving
			c.sendingTo = 0
		}
		_ = c.captureBack.Destroy(req.Handle)
		err := c.reg.Deactivate(req.Handle)
		reply(req, Result{Err: err})

	case ReqUpdatePeer:
		err := c.reg.Update(req.Handle, func(cfg *registry.Config) {
			if req.Config.Hostname != "" {
				cfg.Hostname = req.Config.Hostname
			}
			if req.Config.Port != 0 {
				cfg.Port = req.Config.Port
			}
			cfg.Position = req.Config.Position
			if req.Config.FixedIPs != nil {
				cfg.FixedIPs = req.Config.FixedIPs
			}
			if req.Config.EnterHook != "" {
				cfg.EnterHook = req.Config.EnterHook
			}
		})
		reply(req, Result{Err: err})

	case ReqChangePort:
		oldPort := c.tr.Port()
		err := c.tr.Close()
		if err == nil {
			err = c.tr.Listen(ctx, req.Port)
		}
		if err != nil {
			if oldPort != 0 {
				// The new bind failed: rebind the previous port so the
				// listener stays where it was.
				_ = c.tr.Listen(ctx, oldPort)
			}
			c.notify(Notification{Kind: NotifyListenPortChanged, Port: req.Port, Err: err.Error()})
		} else {
			c.notify(Notification{Kind: NotifyListenPortChanged, Port: req.Port})
		}
		reply(req, Result{Err: err})

	case ReqAuthorizeFingerprint:
		// Authorization itself lives on the transport's AuthorizedSet,
		// reached directly by the frontend surface (it is the one
		// structure spec §5 explicitly allows to be shared, guarded by
		// its own RWMutex) rather than routed through this request —
		// this case exists for symmetry and emits the notification.
		c.notify(Notification{Kind: NotifyAuthorizedFingerprintsChanged, Fingerprint: req.FP, Description: req.FPDesc})
		reply(req, Result{})

	case ReqRemoveFingerprint:
		c.notify(Notification{Kind: NotifyAuthorizedFingerprintsChanged, Fingerprint: req.FP})
		reply(req, Result{})

	case ReqAskState:
		reply(req, Result{Peers: c.reg.All()})

	case ReqResolveDNS:
		// No DNS lookup is performed here and the peer's Resolving flag
		// is not set: the request only runs a no-op registry Update for
		// the handle (which emits a registry change) and replies with an
		// empty Result.
		if req.Handle != 0 {
			_ = c.reg.Update(req.Handle, func(*registry.Config) {})
		}
		reply(req, Result{})
	}
}
