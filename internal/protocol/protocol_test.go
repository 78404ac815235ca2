// ABOUTME: Tests for inbound frame classification and outbound frame shapes
// ABOUTME: Pins the wire contract so client compatibility cannot drift silently

package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound_StatePush(t *testing.T) {
	in := DecodeInbound([]byte(`{"type":"state","state":{"count":3}}`))

	require.Equal(t, KindStatePush, in.Kind)
	assert.Equal(t, map[string]any{"count": float64(3)}, in.State)
}

func TestDecodeInbound_StatePushNull(t *testing.T) {
	t.Run("explicit null", func(t *testing.T) {
		in := DecodeInbound([]byte(`{"type":"state","state":null}`))
		require.Equal(t, KindStatePush, in.Kind)
		assert.Nil(t, in.State)
	})

	t.Run("absent state field", func(t *testing.T) {
		in := DecodeInbound([]byte(`{"type":"state"}`))
		require.Equal(t, KindStatePush, in.Kind)
		assert.Nil(t, in.State)
	})
}

func TestDecodeInbound_RPCRequest(t *testing.T) {
	in := DecodeInbound([]byte(`{"type":"rpc","id":"1","method":"increment","args":[5]}`))

	require.Equal(t, KindRPCRequest, in.Kind)
	assert.Equal(t, "1", in.Request.ID)
	assert.Equal(t, "increment", in.Request.Method)
	assert.Equal(t, []any{float64(5)}, in.Request.Args)
}

func TestDecodeInbound_RPCRequestNoArgs(t *testing.T) {
	in := DecodeInbound([]byte(`{"type":"rpc","id":"2","method":"reset"}`))

	require.Equal(t, KindRPCRequest, in.Kind)
	assert.NotNil(t, in.Request.Args)
	assert.Empty(t, in.Request.Args)
}

func TestDecodeInbound_RPCResponseNotAccepted(t *testing.T) {
	in := DecodeInbound([]byte(`{"type":"rpc","id":"1","success":true,"result":5}`))
	assert.Equal(t, KindRPCResponse, in.Kind)
}

func TestDecodeInbound_RawFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "hello there"},
		{"json without type", `{"state":{"count":1}}`},
		{"unknown type", `{"type":"ping"}`},
		{"rpc without markers", `{"type":"rpc","id":"1"}`},
		{"json array", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := DecodeInbound([]byte(tt.raw))
			assert.Equal(t, KindRaw, in.Kind)
			assert.Equal(t, tt.raw, string(in.Raw))
		})
	}
}

func TestEncodeState(t *testing.T) {
	raw, err := EncodeState(map[string]any{"count": 1})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "state", decoded["type"])
	assert.Equal(t, map[string]any{"count": float64(1)}, decoded["state"])
}

func TestEncodeStateError(t *testing.T) {
	raw, err := EncodeStateError("write rejected")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "state_error", decoded["type"])
	assert.Equal(t, "write rejected", decoded["error"])
}

func TestEncodeIdentity(t *testing.T) {
	raw, err := EncodeIdentity("main", "counter-agent")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "identity", decoded["type"])
	assert.Equal(t, "main", decoded["name"])
	assert.Equal(t, "counter-agent", decoded["agent"])
}

func TestEncodeRPCResponse_SuccessCarriesResultOnly(t *testing.T) {
	raw, err := EncodeRPCResponse(RPCResponse{ID: "1", Success: true, Result: 5})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "rpc", decoded["type"])
	assert.Equal(t, "1", decoded["id"])
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, float64(5), decoded["result"])
	_, hasError := decoded["error"]
	assert.False(t, hasError)
}

func TestEncodeRPCResponse_SuccessNilResultStillPresent(t *testing.T) {
	raw, err := EncodeRPCResponse(RPCResponse{ID: "1", Success: true, Result: nil})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	_, hasResult := decoded["result"]
	assert.True(t, hasResult)
}

func TestEncodeRPCResponse_FailureCarriesErrorOnly(t *testing.T) {
	raw, err := EncodeRPCResponse(RPCResponse{ID: "2", Success: false, Error: "Method nope is not callable"})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "2", decoded["id"])
	assert.Equal(t, false, decoded["success"])
	assert.Equal(t, "Method nope is not callable", decoded["error"])
	_, hasResult := decoded["result"]
	assert.False(t, hasResult)
}
