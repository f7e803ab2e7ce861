package proto

import (
	"encoding/binary"
	"math"
)

// Encode appends the wire representation of ev to dst and returns the
// extended slice. dst may be nil; callers on a hot path should pass a
// reusable buffer of at least MaxFrameSize bytes to stay allocation-free.
func Encode(dst []byte, ev Event) []byte {
	dst = append(dst, byte(ev.Tag))
	switch ev.Tag {
	case TagPointerMotion:
		dst = appendU32(dst, ev.Time)
		dst = appendF64(dst, ev.DX)
		dst = appendF64(dst, ev.DY)
	case TagPointerButton:
		dst = appendU32(dst, ev.Time)
		dst = appendU32(dst, ev.Button)
		dst = appendU32(dst, ev.State)
	case TagPointerAxis:
		dst = appendU32(dst, ev.Time)
		dst = append(dst, byte(ev.Axis))
		dst = appendF64(dst, ev.AxisValue)
	case TagPointerAxisStep:
		dst = append(dst, byte(ev.Axis))
		dst = appendI32(dst, ev.AxisStep)
	case TagKeyboardKey:
		dst = appendU32(dst, ev.Time)
		dst = appendU32(dst, ev.Key)
		dst = append(dst, byte(ev.State))
	case TagKeyboardModifiers:
		dst = appendU32(dst, ev.Depressed)
		dst = appendU32(dst, ev.Latched)
		dst = appendU32(dst, ev.Locked)
		dst = appendU32(dst, ev.Group)
	case TagPing, TagPong:
		// no payload
	case TagEnter:
		dst = append(dst, byte(ev.Position))
	case TagLeave, TagAck:
		dst = appendU32(dst, ev.Serial)
	}
	return dst
}

// Decode parses a single frame from buf, returning the event, the number of
// bytes consumed, and an error if the frame is malformed. Decode never
// panics on short input; truncated frames are reported as *ErrProtocol.
func Decode(buf []byte) (Event, int, error) {
	if len(buf) < 1 {
		return Event{}, 0, protoErrf("empty frame")
	}
	tag := Tag(buf[0])
	body := buf[1:]

	switch tag {
	case TagPointerMotion:
		if len(body) < 20 {
			return Event{}, 0, protoErrf("truncated PointerMotion")
		}
		t := binary.BigEndian.Uint32(body[0:4])
		dx := math.Float64frombits(binary.BigEndian.Uint64(body[4:12]))
		dy := math.Float64frombits(binary.BigEndian.Uint64(body[12:20]))
		return PointerMotion(t, dx, dy), 21, nil

	case TagPointerButton:
		if len(body) < 12 {
			return Event{}, 0, protoErrf("truncated PointerButton")
		}
		t := binary.BigEndian.Uint32(body[0:4])
		button := binary.BigEndian.Uint32(body[4:8])
		state := binary.BigEndian.Uint32(body[8:12])
		if state > 1 {
			return Event{}, 0, protoErrf("PointerButton state out of range: %d", state)
		}
		return PointerButton(t, button, state), 13, nil

	case TagPointerAxis:
		if len(body) < 13 {
			return Event{}, 0, protoErrf("truncated PointerAxis")
		}
		t := binary.BigEndian.Uint32(body[0:4])
		axis := Axis(body[4])
		if axis != AxisVertical && axis != AxisHorizontal {
			return Event{}, 0, protoErrf("PointerAxis axis out of range: %d", axis)
		}
		value := math.Float64frombits(binary.BigEndian.Uint64(body[5:13]))
		return PointerAxis(t, axis, value), 14, nil

	case TagPointerAxisStep:
		if len(body) < 5 {
			return Event{}, 0, protoErrf("truncated PointerAxisStep")
		}
		axis := Axis(body[0])
		if axis != AxisVertical && axis != AxisHorizontal {
			return Event{}, 0, protoErrf("PointerAxisStep axis out of range: %d", axis)
		}
		value := int32(binary.BigEndian.Uint32(body[1:5]))
		return PointerAxisStep(axis, value), 6, nil

	case TagKeyboardKey:
		if len(body) < 9 {
			return Event{}, 0, protoErrf("truncated KeyboardKey")
		}
		t := binary.BigEndian.Uint32(body[0:4])
		key := binary.BigEndian.Uint32(body[4:8])
		state := uint32(body[8])
		if state > 1 {
			return Event{}, 0, protoErrf("KeyboardKey state out of range: %d", state)
		}
		return KeyboardKey(t, key, state), 10, nil

	case TagKeyboardModifiers:
		if len(body) < 16 {
			return Event{}, 0, protoErrf("truncated KeyboardModifiers")
		}
		depressed := binary.BigEndian.Uint32(body[0:4])
		latched := binary.BigEndian.Uint32(body[4:8])
		locked := binary.BigEndian.Uint32(body[8:12])
		group := binary.BigEndian.Uint32(body[12:16])
		return KeyboardModifiers(depressed, latched, locked, group), 17, nil

	case TagPing:
		return PingEvent(), 1, nil

	case TagPong:
		return PongEvent(), 1, nil

	case TagEnter:
		if len(body) < 1 {
			return Event{}, 0, protoErrf("truncated Enter")
		}
		pos := Position(body[0])
		if pos > PositionBottom {
			return Event{}, 0, protoErrf("Enter position out of range: %d", pos)
		}
		return EnterEvent(pos), 2, nil

	case TagLeave:
		if len(body) < 4 {
			return Event{}, 0, protoErrf("truncated Leave")
		}
		return LeaveEvent(binary.BigEndian.Uint32(body[0:4])), 5, nil

	case TagAck:
		if len(body) < 4 {
			return Event{}, 0, protoErrf("truncated Ack")
		}
		return AckEvent(binary.BigEndian.Uint32(body[0:4])), 5, nil

	default:
		return Event{}, 0, protoErrf("unknown tag: 0x%02x", tag)
	}
}

func appendU32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendI32(dst []byte, v int32) []byte {
	return appendU32(dst, uint32(v))
}

func appendF64(dst []byte, v float64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	return append(dst, b[:]...)
}
