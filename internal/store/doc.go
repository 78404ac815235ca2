// Package store provides durable row persistence for agent identities
// using SQLite.
//
// Each agent identity owns a private row namespace. Rows hold opaque
// serialized text and are addressed by (identity, row_id). The package
// deliberately knows nothing about what the rows mean; the state
// resolution rules live in internal/state.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//
// # Error Handling
//
//   - ErrNotFound: requested row does not exist
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests; the *Err fields inject failures.
// Use NewSQLiteStore(":memory:") for integration tests with real SQLite.
package store
