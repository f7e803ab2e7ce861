package frontend

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireRequestJSONRoundTrip(t *testing.T) {
	req := WireRequest{
		Type:      TypeCreatePeer,
		RequestID: "11111111-1111-1111-1111-111111111111",
		Hostname:  "host-b",
		Port:      4242,
		Position:  "right",
		FixedIPs:  []string{"10.0.0.2"},
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded WireRequest
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, req, decoded)
}

func TestWireRequestOmitsEmptyFields(t *testing.T) {
	req := WireRequest{Type: TypeAskState}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"ask_state"}`, string(data))
}

func TestWireNotificationJSONRoundTrip(t *testing.T) {
	n := WireNotification{
		Type:     TypePeerStateChanged,
		Handle:   7,
		Hostname: "host-b",
		Position: "right",
		Active:   true,
	}

	data, err := json.Marshal(n)
	require.NoError(t, err)

	var decoded WireNotification
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, n, decoded)
}
