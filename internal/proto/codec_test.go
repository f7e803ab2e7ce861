package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
	}{
		{"PointerMotion", PointerMotion(1000, 1.5, -2.25)},
		{"PointerButton", PointerButton(1000, 272, 1)},
		{"PointerAxis", PointerAxis(1000, AxisVertical, 3.0)},
		{"PointerAxisStep", PointerAxisStep(AxisHorizontal, -120)},
		{"KeyboardKey", KeyboardKey(1000, 30, 0)},
		{"KeyboardModifiers", KeyboardModifiers(1, 2, 4, 0)},
		{"Ping", PingEvent()},
		{"Pong", PongEvent()},
		{"Enter", EnterEvent(PositionRight)},
		{"Leave", LeaveEvent(42)},
		{"Ack", AckEvent(42)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := Encode(nil, tc.ev)
			require.LessOrEqual(t, len(buf), MaxFrameSize)

			got, n, err := Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, len(buf), n)
			assert.Equal(t, tc.ev, got)
		})
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	for tag := 0x0B; tag < 0x100; tag++ {
		_, _, err := Decode([]byte{byte(tag)})
		require.Error(t, err)
		var protoErr *ErrProtocol
		require.ErrorAs(t, err, &protoErr)
	}
}

func TestDecodeRejectsTruncatedFrames(t *testing.T) {
	full := Encode(nil, PointerMotion(1, 2, 3))
	for n := 1; n < len(full); n++ {
		_, _, err := Decode(full[:n])
		assert.Error(t, err, "expected truncation error at length %d", n)
	}
}

func TestDecodeRejectsOutOfRangeAxis(t *testing.T) {
	buf := Encode(nil, PointerAxis(1, AxisVertical, 1))
	buf[5] = 2 // corrupt axis byte (offset: tag+time=5)
	_, _, err := Decode(buf)
	assert.Error(t, err)
}

func TestDecodeRejectsOutOfRangePosition(t *testing.T) {
	buf := Encode(nil, EnterEvent(PositionLeft))
	buf[1] = 4
	_, _, err := Decode(buf)
	assert.Error(t, err)
}

func TestDecodeRejectsOutOfRangeBoolState(t *testing.T) {
	buf := Encode(nil, PointerButton(1, 272, 1))
	buf[len(buf)-1] = 2
	_, _, err := Decode(buf)
	assert.Error(t, err)
}

func TestEncodeAppendsToExistingBuffer(t *testing.T) {
	buf := []byte{0xFF, 0xFF}
	buf = Encode(buf, PingEvent())
	assert.Equal(t, []byte{0xFF, 0xFF, byte(TagPing)}, buf)
}

func TestMaxFrameSizeIsTight(t *testing.T) {
	buf := Encode(nil, PointerMotion(0, 0, 0))
	assert.Equal(t, MaxFrameSize, len(buf))
}
