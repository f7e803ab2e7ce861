// Package proto implements the wire event codec: a pure, synchronous,
// allocation-free mapping between in-memory Event variants and the
// fixed-layout big-endian frame carried inside a DTLS session.
package proto

import "fmt"

// Tag identifies the variant encoded in a frame's first byte.
type Tag uint8

const (
	TagPointerMotion     Tag = 0x00
	TagPointerButton     Tag = 0x01
	TagPointerAxis       Tag = 0x02
	TagPointerAxisStep   Tag = 0x03
	TagKeyboardKey       Tag = 0x04
	TagKeyboardModifiers Tag = 0x05
	TagPing              Tag = 0x06
	TagPong              Tag = 0x07
	TagEnter             Tag = 0x08
	TagLeave             Tag = 0x09
	TagAck               Tag = 0x0A
)

// Position is a screen-edge barrier position, as carried in Enter frames.
type Position uint8

const (
	PositionLeft Position = iota
	PositionRight
	PositionTop
	PositionBottom
)

func (p Position) String() string {
	switch p {
	case PositionLeft:
		return "left"
	case PositionRight:
		return "right"
	case PositionTop:
		return "top"
	case PositionBottom:
		return "bottom"
	default:
		return fmt.Sprintf("Position(%d)", uint8(p))
	}
}

// Axis identifies pointer scroll orientation.
type Axis uint8

const (
	AxisVertical Axis = iota
	AxisHorizontal
)

// MaxFrameSize bounds every encoded frame; dominated by PointerMotion
// (tag + 4-byte time + two 8-byte deltas = 21 bytes).
const MaxFrameSize = 21

// Event is the sum type of everything that can cross the wire. Exactly one
// of the typed fields is meaningful, selected by Tag.
type Event struct {
	Tag Tag

	// PointerMotion
	Time uint32
	DX   float64
	DY   float64

	// PointerButton
	Button uint32
	State  uint32 // also used by KeyboardKey, reused as 0/1

	// PointerAxis
	Axis      Axis
	AxisValue float64

	// PointerAxisStep
	AxisStep int32

	// KeyboardKey
	Key uint32

	// KeyboardModifiers
	Depressed uint32
	Latched   uint32
	Locked    uint32
	Group     uint32

	// Enter
	Position Position

	// Leave / Ack
	Serial uint32
}

// ErrProtocol marks a decode failure: unknown tag, truncated frame, or an
// out-of-range sub-field. Callers drop the frame and keep the session.
type ErrProtocol struct {
	Reason string
}

func (e *ErrProtocol) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func protoErrf(format string, args ...any) error {
	return &ErrProtocol{Reason: fmt.Sprintf(format, args...)}
}

// Pointer motion constructors/helpers kept terse; callers build Event
// literals directly in the common case.

func PointerMotion(t uint32, dx, dy float64) Event {
	return Event{Tag: TagPointerMotion, Time: t, DX: dx, DY: dy}
}

func PointerButton(t uint32, button uint32, state uint32) Event {
	return Event{Tag: TagPointerButton, Time: t, Button: button, State: state}
}

func PointerAxis(t uint32, axis Axis, value float64) Event {
	return Event{Tag: TagPointerAxis, Time: t, Axis: axis, AxisValue: value}
}

func PointerAxisStep(axis Axis, value int32) Event {
	return Event{Tag: TagPointerAxisStep, Axis: axis, AxisStep: value}
}

func KeyboardKey(t uint32, key uint32, state uint32) Event {
	return Event{Tag: TagKeyboardKey, Time: t, Key: key, State: state}
}

func KeyboardModifiers(depressed, latched, locked, group uint32) Event {
	return Event{Tag: TagKeyboardModifiers, Depressed: depressed, Latched: latched, Locked: locked, Group: group}
}

func PingEvent() Event { return Event{Tag: TagPing} }
func PongEvent() Event { return Event{Tag: TagPong} }

func EnterEvent(pos Position) Event { return Event{Tag: TagEnter, Position: pos} }
func LeaveEvent(serial uint32) Event { return Event{Tag: TagLeave, Serial: serial} }
func AckEvent(serial uint32) Event   { return Event{Tag: TagAck, Serial: serial} }
