// Package gateway hosts agent actors behind an HTTP server.
//
// # Routing
//
// Agent endpoints live under /agents/<kind>/<name>, where <kind> is the
// kebab-case agent type and <name> the identity string. A request with
// a WebSocket upgrade attaches a connection to the identity's actor;
// any other request answers with the inspection body:
//
//	{"agent": "<kind>", "state": <current state or null>}
//
// A missing <name> selects the identity "default".
//
// # Single ownership
//
// The Host keeps at most one running actor per (kind, name) pair and
// creates actors lazily on first access. That, together with the
// actor's mailbox, provides the no-concurrent-operations guarantee the
// actor core is built on.
//
// # Transport
//
// WebSocket connections use github.com/coder/websocket. Each accepted
// connection runs a read pump on its handler goroutine; outbound sends
// carry a timeout so a stalled client cannot block its actor.
package gateway
