// Package agent implements the stateful agent actor.
//
// # Overview
//
// One Actor owns one named identity: its durable state slot, its set of
// attached connections, and its capability registry. The hosting layer
// guarantees a single actor per identity and delivers every transport
// event to it; the actor serializes those events through a mailbox
// goroutine, so no locking is needed within an identity and actors for
// different identities run fully independently.
//
// # Event flow
//
//	HandleOpen    register conn -> identity frame -> state frame (if set) -> connect hook
//	HandleMessage state push -> persist, broadcast (sender excluded) | fail -> state_error to sender
//	              rpc request -> dispatch -> response to sender only
//	              anything else -> raw-message hook
//	HandleClose   unregister (unconditional) -> close hook
//	HandleError   error hook; the host follows with the close path
//
// # Definitions
//
// A Definition describes an agent type: its CamelCase name (kebab-cased
// on the wire), optional initial state, hooks, and the static capability
// registry built with NewMethods. Capabilities are the only methods
// reachable over the wire.
//
// # Failure containment
//
// Handler errors and panics become failed rpc responses; hook panics are
// recovered and logged; broadcast send failures are logged per connection
// and never abort the fan-out or the write that triggered it. No failure
// in this package terminates the actor.
package agent
