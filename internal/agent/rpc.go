// ABOUTME: Static capability registry and RPC dispatch for agent definitions
// ABOUTME: Only explicitly registered methods are reachable over the wire

package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2389/coven-agents/internal/protocol"
)

// HandlerFunc executes a capability call. Args are positional, already
// decoded from JSON. The returned value must be JSON-serializable.
type HandlerFunc func(ctx context.Context, a *Actor, args []any) (any, error)

// Method is one remotely callable capability of an agent type.
type Method struct {
	Name        string
	Description string
	Streaming   bool
	Handler     HandlerFunc
}

// Methods is the capability registry of an agent type. It is built once
// at definition time and never mutated afterwards; everything not
// registered here is unreachable over the wire regardless of visibility.
type Methods struct {
	byName map[string]Method
}

// NewMethods builds a capability registry from the given methods.
// Returns an error on a duplicate or empty name, or a nil handler.
func NewMethods(methods ...Method) (*Methods, error) {
	m := &Methods{byName: make(map[string]Method, len(methods))}
	for _, method := range methods {
		if method.Name == "" {
			return nil, fmt.Errorf("method name is required")
		}
		if method.Handler == nil {
			return nil, fmt.Errorf("method %s: handler is required", method.Name)
		}
		if _, exists := m.byName[method.Name]; exists {
			return nil, fmt.Errorf("method %s registered twice", method.Name)
		}
		m.byName[method.Name] = method
	}
	return m, nil
}

// MustMethods is NewMethods that panics on error, for static definitions.
func MustMethods(methods ...Method) *Methods {
	m, err := NewMethods(methods...)
	if err != nil {
		panic(err)
	}
	return m
}

// Dispatch executes a remote call and always produces a response with
// the request's id copied verbatim. Unknown methods, handler errors,
// handler panics, and unserializable results all degrade to a failed
// response; nothing escapes to crash the actor.
func (m *Methods) Dispatch(ctx context.Context, a *Actor, req protocol.RPCRequest) protocol.RPCResponse {
	method, ok := m.byName[req.Method]
	if !ok {
		return protocol.RPCResponse{
			ID:      req.ID,
			Success: false,
			Error:   fmt.Sprintf("Method %s is not callable", req.Method),
		}
	}

	result, err := invoke(ctx, a, method, req.Args)
	if err != nil {
		return protocol.RPCResponse{ID: req.ID, Success: false, Error: err.Error()}
	}

	if _, err := json.Marshal(result); err != nil {
		return protocol.RPCResponse{
			ID:      req.ID,
			Success: false,
			Error:   fmt.Sprintf("result is not serializable: %v", err),
		}
	}

	return protocol.RPCResponse{ID: req.ID, Success: true, Result: result}
}

// invoke runs the handler, converting a panic into an error so a buggy
// capability cannot take the actor down with it.
func invoke(ctx context.Context, a *Actor, method Method, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return method.Handler(ctx, a, args)
}
