// ABOUTME: Static definition of an agent type: initial state, capabilities, hooks
// ABOUTME: One Definition is shared by every identity of that type

package agent

import "github.com/2389/coven-agents/internal/identity"

// Definition describes an agent type. It is built once at startup and
// shared, read-only, by every actor of that type.
//
// All hooks are optional. They run on the identity's mailbox goroutine,
// so they may touch actor state freely but must not block for long.
// A panicking hook is recovered and logged; it never takes the actor
// down and never prevents connection bookkeeping.
type Definition struct {
	// Name is the agent type name in CamelCase, e.g. "CounterAgent".
	// Its kebab-case form (see Kind) is wire-visible.
	Name string

	// InitialState is the configured default state. It only applies
	// when HasInitialState is true; a nil InitialState with
	// HasInitialState set means "default to null", which is distinct
	// from having no default at all.
	InitialState    any
	HasInitialState bool

	// Methods is the capability registry. A nil registry exposes nothing.
	Methods *Methods

	// OnConnect runs after a new connection received its identity and
	// state greeting.
	OnConnect func(a *Actor, c Conn)

	// OnMessage receives frames that are not protocol traffic: non-JSON
	// payloads, JSON without a recognized type, and binary frames.
	OnMessage func(a *Actor, c Conn, raw []byte)

	// OnClose runs after a closed connection was removed from the registry.
	OnClose func(a *Actor, c Conn, code int, reason string, wasClean bool)

	// OnError runs when the transport reports a connection error. The
	// host follows up with the close path, which handles removal.
	OnError func(a *Actor, c Conn, err error)

	// OnStateChanged runs after a state value was persisted and
	// broadcast, for both client pushes and server-side SetState.
	OnStateChanged func(a *Actor, state any)
}

// Kind returns the public kebab-case form of the type name, e.g.
// "counter-agent" for "CounterAgent".
func (d *Definition) Kind() string {
	return identity.FormatAgentName(d.Name)
}
