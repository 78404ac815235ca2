// ABOUTME: In-memory RowStore implementation for unit tests
// ABOUTME: Supports per-operation failure injection to exercise error paths

package store

import (
	"context"
	"sync"
)

// MockStore is an in-memory RowStore for tests. It is safe for
// concurrent use. Set the *Err fields to force the corresponding
// operation to fail.
type MockStore struct {
	mu   sync.Mutex
	rows map[string]map[string]string // identity -> row_id -> value

	GetErr    error
	UpsertErr error
	DeleteErr error

	// UpsertErrRow narrows UpsertErr to a single row ID. Empty means
	// every upsert fails.
	UpsertErrRow string
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		rows: make(map[string]map[string]string),
	}
}

func (m *MockStore) GetRow(ctx context.Context, identity, rowID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return "", m.GetErr
	}
	value, ok := m.rows[identity][rowID]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *MockStore) UpsertRow(ctx context.Context, identity, rowID, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpsertErr != nil && (m.UpsertErrRow == "" || m.UpsertErrRow == rowID) {
		return m.UpsertErr
	}
	if m.rows[identity] == nil {
		m.rows[identity] = make(map[string]string)
	}
	m.rows[identity][rowID] = value
	return nil
}

func (m *MockStore) DeleteRow(ctx context.Context, identity, rowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.rows[identity], rowID)
	return nil
}

func (m *MockStore) Close() error {
	return nil
}

// Row returns the raw stored value for a row, bypassing error injection.
// Test helper for asserting on persisted contents.
func (m *MockStore) Row(identity, rowID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.rows[identity][rowID]
	return value, ok
}

// SetRow stores a raw value directly, bypassing error injection.
// Test helper for seeding corrupted or legacy payloads.
func (m *MockStore) SetRow(identity, rowID, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rows[identity] == nil {
		m.rows[identity] = make(map[string]string)
	}
	m.rows[identity][rowID] = value
}
