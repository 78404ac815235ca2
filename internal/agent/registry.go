// ABOUTME: Tracks the connections attached to one agent identity
// ABOUTME: Broadcast iterates in insertion order and can exclude the sender

package agent

import "log/slog"

// Conn is one attached transport endpoint. The registry holds a
// non-owning reference; the transport layer owns the connection's
// lifecycle. Connections are compared by identity, so implementations
// are expected to be pointers.
type Conn interface {
	// Send transmits one text frame to the client.
	Send(data []byte) error
}

// Registry tracks the live connections of a single agent identity in
// insertion order. It is not safe for concurrent use; the owning actor
// serializes all access.
type Registry struct {
	conns  []Conn
	logger *slog.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Add registers a connection. Adding a connection twice is a no-op.
func (r *Registry) Add(c Conn) {
	for _, existing := range r.conns {
		if existing == c {
			return
		}
	}
	r.conns = append(r.conns, c)
}

// Remove unregisters a connection. Removing an unknown connection is a
// no-op, so close and error paths can both call it safely.
func (r *Registry) Remove(c Conn) {
	for i, existing := range r.conns {
		if existing == c {
			r.conns = append(r.conns[:i], r.conns[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return len(r.conns)
}

// Broadcast sends data to every registered connection except exclude,
// in insertion order. A failed send is logged and never prevents
// delivery to the remaining connections. Pass nil to exclude nobody.
func (r *Registry) Broadcast(data []byte, exclude Conn) {
	for _, c := range r.conns {
		if c == exclude {
			continue
		}
		if err := c.Send(data); err != nil {
			r.logger.Warn("broadcast send failed", "error", err)
		}
	}
}
