// Package coordinator implements the coordination core (spec §4.F): the
// Receiving/AwaitingLeave/Sending state machine that drives capture and
// transport in response to local and remote events, plus the liveness
// ping task and release-chord/stuck-key recovery.
//
// The registry (internal/registry) is owned exclusively by this package's
// Run loop, reached by every other task via message-passing, per spec
// §4.E/§5 and the "owner + message channels" re-architecture in spec §9
// (the source's cyclic peer-registry references are replaced by this
// single-owner-plus-channels shape). The liveness task is grounded on the
// teacher's api/pkg/connman/connman.go grace-period/reconnect pattern,
// adapted from "tolerate brief reconnects" to "detect an unresponsive
// Sending/held-keys peer within one ping window" (spec §4.F).
package coordinator

import "fmt"

// State is the per-device capture/send state (spec §4.F).
type State int

const (
	Receiving State = iota
	AwaitingLeave
	Sending
)

func (s State) String() string {
	switch s {
	case Receiving:
		return "receiving"
	case AwaitingLeave:
		return "awaiting_leave"
	case Sending:
		return "sending"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
