// ABOUTME: AgentState resolution on top of the durable row store
// ABOUTME: Distinguishes never-written state from state explicitly set to null

// Package state manages the single durable state slot owned by each
// agent identity.
//
// Two rows back the slot: a current-value row and a changed marker row.
// The marker is what lets us tell "explicitly written" apart from "row
// absent because state was never touched"; it is set on the first
// successful write and only cleared by the corruption-recovery path.
//
// Resolution is a three-way variant rather than a magic sentinel value:
//
//   - Unset: no configured default and never written
//   - Default: the configured default, not yet persisted
//   - Persisted: a value read back from (or just written to) the store
//
// The in-memory cache inside Cell is just that, a cache: everything is
// reconstructible from the store, so the owning process can be torn
// down and recreated between messages without losing state.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/coven-agents/internal/store"
)

// Reserved row IDs within an identity's row namespace. User-facing SQL
// helpers must never hand these out.
const (
	CurrentRowID = "state"
	ChangedRowID = "state_changed"
)

// Resolution tags how the current state value was obtained.
type Resolution int

const (
	// Unset means no default is configured and nothing was ever written.
	Unset Resolution = iota

	// Default means the configured default is live but not yet persisted.
	Default

	// Persisted means the value was read back from or written to the store.
	Persisted
)

func (r Resolution) String() string {
	switch r {
	case Unset:
		return "unset"
	case Default:
		return "default"
	case Persisted:
		return "persisted"
	default:
		return fmt.Sprintf("resolution(%d)", int(r))
	}
}

// WriteError reports a state write that was rejected before touching
// the store (the value was not JSON-serializable) or failed inside it.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("state write failed: %v", e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Cell owns the durable state slot for one identity. It is not safe
// for concurrent use; the owning actor serializes all access.
type Cell struct {
	store      store.RowStore
	identity   string
	initial    any
	hasInitial bool
	logger     *slog.Logger

	cached     any
	resolution Resolution
	resolved   bool
}

// NewCell creates a Cell for the given identity. If hasInitial is true,
// initial is the configured default returned until the first write.
func NewCell(s store.RowStore, identityName string, initial any, hasInitial bool, logger *slog.Logger) *Cell {
	return &Cell{
		store:      s,
		identity:   identityName,
		initial:    initial,
		hasInitial: hasInitial,
		logger:     logger.With("component", "state", "identity", identityName),
	}
}

// Load resolves the current state. The configured default is returned
// lazily and read-only: resolving it never mutates the store. Corrupted
// persisted payloads fall back to the default (re-persisting it) when
// one exists, otherwise both rows are cleared and the slot is Unset.
// Corruption never surfaces to the caller.
func (c *Cell) Load(ctx context.Context) (any, Resolution, error) {
	if c.resolved {
		return c.cached, c.resolution, nil
	}

	_, err := c.store.GetRow(ctx, c.identity, ChangedRowID)
	if errors.Is(err, store.ErrNotFound) {
		return c.resolveNeverWritten(), c.resolution, nil
	}
	if err != nil {
		return nil, Unset, fmt.Errorf("reading changed marker: %w", err)
	}

	raw, err := c.store.GetRow(ctx, c.identity, CurrentRowID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, Unset, fmt.Errorf("reading state row: %w", err)
	}

	var value any
	if err == nil {
		if jsonErr := json.Unmarshal([]byte(raw), &value); jsonErr == nil {
			c.cache(value, Persisted)
			return c.cached, c.resolution, nil
		}
	}

	// Marker set but the payload is missing or unreadable: recover.
	return c.recoverCorrupted(ctx)
}

// resolveNeverWritten handles the marker-absent case: the default (if
// configured) is authoritative and not yet persisted.
func (c *Cell) resolveNeverWritten() any {
	if c.hasInitial {
		c.cache(c.initial, Default)
	} else {
		c.cache(nil, Unset)
	}
	return c.cached
}

// recoverCorrupted handles an unreadable current row. With a configured
// default, the default is re-persisted and becomes the live state.
// Without one, both rows are deleted and the slot returns to Unset.
func (c *Cell) recoverCorrupted(ctx context.Context) (any, Resolution, error) {
	c.logger.Warn("persisted state unreadable, recovering")

	if c.hasInitial {
		if err := c.Write(ctx, c.initial); err != nil {
			return nil, Unset, fmt.Errorf("re-persisting default state: %w", err)
		}
		return c.cached, c.resolution, nil
	}

	if err := c.store.DeleteRow(ctx, c.identity, CurrentRowID); err != nil {
		return nil, Unset, fmt.Errorf("clearing state row: %w", err)
	}
	if err := c.store.DeleteRow(ctx, c.identity, ChangedRowID); err != nil {
		return nil, Unset, fmt.Errorf("clearing changed marker: %w", err)
	}
	c.cache(nil, Unset)
	return nil, Unset, nil
}

// Write serializes value and persists it, then sets the changed marker.
// Serialization failure surfaces as a *WriteError before any store
// mutation, so a rejected write never partially updates the slot.
func (c *Cell) Write(ctx context.Context, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &WriteError{Err: err}
	}

	if err := c.store.UpsertRow(ctx, c.identity, CurrentRowID, string(raw)); err != nil {
		return &WriteError{Err: err}
	}
	if err := c.store.UpsertRow(ctx, c.identity, ChangedRowID, "true"); err != nil {
		// The current row is already updated, so the cache no longer
		// matches the store. Drop it and let the next Load reconcile.
		c.resolved = false
		return &WriteError{Err: err}
	}

	c.cache(value, Persisted)
	return nil
}

func (c *Cell) cache(value any, res Resolution) {
	c.cached = value
	c.resolution = res
	c.resolved = true
}
