// ABOUTME: Tests for the actor host
// ABOUTME: Validates registration, lazy creation, and single ownership per identity

package gateway

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-agents/internal/agent"
	"github.com/2389/coven-agents/internal/store"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	h := NewHost(store.NewMockStore(), slog.Default())
	t.Cleanup(h.Shutdown)
	return h
}

func TestHostRegister(t *testing.T) {
	h := newTestHost(t)

	require.NoError(t, h.Register(&agent.Definition{Name: "CounterAgent"}))
	assert.Equal(t, []string{"counter-agent"}, h.Kinds())

	t.Run("duplicate kind rejected", func(t *testing.T) {
		err := h.Register(&agent.Definition{Name: "CounterAgent"})
		assert.Error(t, err)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		err := h.Register(&agent.Definition{})
		assert.Error(t, err)
	})
}

func TestHostGetOrCreate(t *testing.T) {
	h := newTestHost(t)
	require.NoError(t, h.Register(&agent.Definition{Name: "CounterAgent"}))

	a1, err := h.GetOrCreate("counter-agent", "main")
	require.NoError(t, err)

	t.Run("same identity returns same actor", func(t *testing.T) {
		again, err := h.GetOrCreate("counter-agent", "main")
		require.NoError(t, err)
		assert.Same(t, a1, again)
	})

	t.Run("different identity returns different actor", func(t *testing.T) {
		other, err := h.GetOrCreate("counter-agent", "other")
		require.NoError(t, err)
		assert.NotSame(t, a1, other)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := h.GetOrCreate("mystery-agent", "main")
		assert.ErrorIs(t, err, ErrUnknownAgent)
	})

	assert.Equal(t, 2, h.ActorCount())
}

func TestSplitAgentPath(t *testing.T) {
	tests := []struct {
		path string
		kind string
		name string
		ok   bool
	}{
		{"/agents/counter-agent/main", "counter-agent", "main", true},
		{"/agents/counter-agent", "counter-agent", "default", true},
		{"/agents/counter-agent/", "counter-agent", "default", true},
		{"/agents/", "", "", false},
		{"/agents", "", "", false},
		{"/agents/counter-agent/main/extra", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			kind, name, ok := splitAgentPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.kind, kind)
				assert.Equal(t, tt.name, name)
			}
		})
	}
}
