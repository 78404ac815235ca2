// ABOUTME: RowStore interface and errors for coven-agents persistence
// ABOUTME: Defines the identity-scoped row contract implemented by SQLite and the mock

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("row not found")

// RowStore defines the interface for identity-scoped row persistence.
// Each agent identity owns a private row namespace; rows are addressed
// by a row ID within that namespace. All operations are synchronous:
// they complete (success or failure) before returning.
type RowStore interface {
	// GetRow returns the serialized value for a row.
	// Returns ErrNotFound if the row does not exist.
	GetRow(ctx context.Context, identity, rowID string) (string, error)

	// UpsertRow writes the serialized value for a row, replacing any
	// previous value. Upserting the same value twice leaves the store
	// in the same observable state.
	UpsertRow(ctx context.Context, identity, rowID, value string) error

	// DeleteRow removes a row. Deleting an absent row is not an error.
	DeleteRow(ctx context.Context, identity, rowID string) error

	// Close releases underlying resources.
	Close() error
}
