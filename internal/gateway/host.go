// ABOUTME: Actor host mapping agent kind and identity to a single running actor
// ABOUTME: Guarantees the single-owner property the actors rely on

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/coven-agents/internal/agent"
	"github.com/2389/coven-agents/internal/store"
)

// ErrUnknownAgent indicates a request for an agent kind no definition
// was registered for.
var ErrUnknownAgent = errors.New("unknown agent kind")

// Host owns every actor in the process. Each (kind, identity) pair maps
// to at most one running actor at a time; actors are created lazily on
// first access and keep running until shutdown. The mutex only guards
// the maps — event serialization within an identity is the actor's
// mailbox, and actors for different identities run independently.
type Host struct {
	rows   store.RowStore
	logger *slog.Logger

	mu     sync.Mutex
	defs   map[string]*agent.Definition
	actors map[string]*agent.Actor
}

// NewHost creates an empty actor host backed by the given row store.
func NewHost(rows store.RowStore, logger *slog.Logger) *Host {
	return &Host{
		rows:   rows,
		logger: logger.With("component", "host"),
		defs:   make(map[string]*agent.Definition),
		actors: make(map[string]*agent.Actor),
	}
}

// Register adds an agent type definition, addressable by its kebab-case
// kind. Registration happens at startup, before any traffic.
func (h *Host) Register(def *agent.Definition) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	kind := def.Kind()
	if kind == "" {
		return errors.New("agent definition needs a name")
	}
	if _, exists := h.defs[kind]; exists {
		return fmt.Errorf("agent kind %s already registered", kind)
	}
	h.defs[kind] = def
	h.logger.Info("agent registered", "agent", kind)
	return nil
}

// Kinds returns the registered agent kinds.
func (h *Host) Kinds() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	kinds := make([]string, 0, len(h.defs))
	for kind := range h.defs {
		kinds = append(kinds, kind)
	}
	return kinds
}

// ActorCount returns the number of running actors.
func (h *Host) ActorCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.actors)
}

// GetOrCreate returns the single actor owning (kind, name), starting it
// if this is the first access. Returns ErrUnknownAgent for kinds with
// no registered definition.
func (h *Host) GetOrCreate(kind, name string) (*agent.Actor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	def, ok := h.defs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, kind)
	}

	key := kind + "/" + name
	if a, ok := h.actors[key]; ok {
		return a, nil
	}

	a := agent.New(def, name, h.rows, h.logger)
	a.Start(context.Background())
	h.actors[key] = a
	h.logger.Info("actor started", "agent", kind, "identity", name)
	return a, nil
}

// Shutdown stops every running actor. Durable state is untouched;
// identities resume from the store on the next access.
func (h *Host) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key, a := range h.actors {
		a.Stop()
		delete(h.actors, key)
	}
}
