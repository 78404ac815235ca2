// ABOUTME: Wire protocol frames exchanged between agents and clients
// ABOUTME: Defines the four message shapes and the inbound routing rules

// Package protocol defines the JSON text frames of the agent wire
// protocol and decodes inbound frames into tagged messages.
//
// Four frame kinds exist on the wire:
//
//	{"type":"state","state":<any JSON>}              state push / broadcast
//	{"type":"state_error","error":<string>}          server -> client only
//	{"type":"identity","name":<string>,"agent":<kebab>}  server -> client, once per connection
//	{"type":"rpc", ...}                              request or response envelope
//
// Within the rpc envelope, presence of "method" marks a request and
// presence of "success" marks a response. Only requests are accepted
// inbound. Anything that fails to parse as JSON, or parses without a
// recognized "type", is routed to the raw-message path untouched.
package protocol

import "encoding/json"

// Wire frame type values.
const (
	TypeState      = "state"
	TypeStateError = "state_error"
	TypeIdentity   = "identity"
	TypeRPC        = "rpc"
)

// Kind classifies an inbound frame after decoding.
type Kind int

const (
	// KindRaw is anything that is not a recognized protocol frame:
	// non-JSON payloads, JSON without a known type, or an rpc envelope
	// with neither request nor response markers.
	KindRaw Kind = iota

	// KindStatePush is a client-initiated state replacement.
	KindStatePush

	// KindRPCRequest is an inbound remote call.
	KindRPCRequest

	// KindRPCResponse is an rpc envelope carrying a response shape.
	// Responses are not accepted inbound; callers drop these.
	KindRPCResponse
)

// RPCRequest is a remote call addressed to a registered capability.
// Args are positional, already decoded from JSON.
type RPCRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Args   []any  `json:"args"`
}

// RPCResponse answers an RPCRequest. ID is copied verbatim from the
// request. Result is present iff Success; Error is present iff not.
type RPCResponse struct {
	ID      string
	Success bool
	Result  any
	Error   string
}

// MarshalJSON emits the response envelope with Result or Error present
// depending on Success, never both.
func (r RPCResponse) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"type":    TypeRPC,
		"id":      r.ID,
		"success": r.Success,
	}
	if r.Success {
		m["result"] = r.Result
	} else {
		m["error"] = r.Error
	}
	return json.Marshal(m)
}

// Inbound is a decoded inbound frame. Raw always holds the original
// payload so the raw-message path can forward it verbatim.
type Inbound struct {
	Kind    Kind
	State   any        // set for KindStatePush
	Request RPCRequest // set for KindRPCRequest
	Raw     []byte
}

// DecodeInbound classifies an inbound text frame. It never fails:
// unparseable or unrecognized payloads come back as KindRaw.
func DecodeInbound(raw []byte) Inbound {
	var probe struct {
		Type    string          `json:"type"`
		State   json.RawMessage `json:"state"`
		ID      string          `json:"id"`
		Method  *string         `json:"method"`
		Args    []any           `json:"args"`
		Success *bool           `json:"success"`
	}

	if err := json.Unmarshal(raw, &probe); err != nil {
		return Inbound{Kind: KindRaw, Raw: raw}
	}

	switch probe.Type {
	case TypeState:
		// An absent state field pushes null, matching the shape of an
		// explicit {"state":null}.
		var state any
		if len(probe.State) > 0 {
			if err := json.Unmarshal(probe.State, &state); err != nil {
				return Inbound{Kind: KindRaw, Raw: raw}
			}
		}
		return Inbound{Kind: KindStatePush, State: state, Raw: raw}

	case TypeRPC:
		if probe.Method != nil {
			args := probe.Args
			if args == nil {
				args = []any{}
			}
			return Inbound{
				Kind:    KindRPCRequest,
				Request: RPCRequest{ID: probe.ID, Method: *probe.Method, Args: args},
				Raw:     raw,
			}
		}
		if probe.Success != nil {
			return Inbound{Kind: KindRPCResponse, Raw: raw}
		}
		return Inbound{Kind: KindRaw, Raw: raw}

	default:
		return Inbound{Kind: KindRaw, Raw: raw}
	}
}

// EncodeState builds a state frame for push or broadcast.
func EncodeState(state any) ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		State any    `json:"state"`
	}{TypeState, state})
}

// EncodeStateError builds a state_error frame describing a rejected write.
func EncodeStateError(errMsg string) ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}{TypeStateError, errMsg})
}

// EncodeIdentity builds the identity frame sent once per connection.
func EncodeIdentity(name, agent string) ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Name  string `json:"name"`
		Agent string `json:"agent"`
	}{TypeIdentity, name, agent})
}

// EncodeRPCResponse builds an rpc response frame.
func EncodeRPCResponse(resp RPCResponse) ([]byte, error) {
	return json.Marshal(resp)
}
