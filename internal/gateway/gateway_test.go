// ABOUTME: Integration tests for the gateway over real HTTP and WebSocket connections
// ABOUTME: Covers greetings, broadcast fan-out, rpc, inspection bodies, and auth

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-agents/internal/agent"
	"github.com/2389/coven-agents/internal/auth"
	"github.com/2389/coven-agents/internal/config"
)

func testConfig(jwtSecret string) *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{HTTPAddr: "localhost:0"},
		Database: config.DatabaseConfig{Path: ":memory:"},
		Auth:     config.AuthConfig{JWTSecret: jwtSecret},
	}
}

func counterDefinition() *agent.Definition {
	return &agent.Definition{
		Name:            "CounterAgent",
		InitialState:    map[string]any{"count": float64(0)},
		HasInitialState: true,
		Methods: agent.MustMethods(
			agent.Method{
				Name:        "increment",
				Description: "Increment the counter by a given amount",
				Handler: func(ctx context.Context, a *agent.Actor, args []any) (any, error) {
					amount := float64(1)
					if len(args) > 0 {
						n, ok := args[0].(float64)
						if !ok {
							return nil, fmt.Errorf("amount must be a number")
						}
						amount = n
					}
					count := amount
					if s, ok := a.State().(map[string]any); ok {
						if n, ok := s["count"].(float64); ok {
							count = n + amount
						}
					}
					if err := a.UpdateState(map[string]any{"count": count}); err != nil {
						return nil, err
					}
					return count, nil
				},
			},
		),
	}
}

func newTestGateway(t *testing.T, jwtSecret string) (*Gateway, *httptest.Server) {
	t.Helper()

	g, err := New(testConfig(jwtSecret), slog.Default())
	require.NoError(t, err)
	require.NoError(t, g.Register(counterDefinition()))

	srv := httptest.NewServer(g.Handler())
	t.Cleanup(func() {
		srv.Close()
		g.host.Shutdown()
		_ = g.store.Close()
	})
	return g, srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, wsURL(srv, path), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.CloseNow() })
	return c
}

func readFrame(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := c.Read(ctx)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func writeFrame(t *testing.T, c *websocket.Conn, frame string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(frame)))
}

func assertNoFrame(t *testing.T, c *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, _, err := c.Read(ctx)
	assert.Error(t, err, "expected no frame to arrive")
}

func TestHealthEndpoints(t *testing.T) {
	_, srv := newTestGateway(t, "")

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	body, _ := io.ReadAll(resp2.Body)
	assert.Contains(t, string(body), "ready")
}

func TestInspectionBody(t *testing.T) {
	_, srv := newTestGateway(t, "")

	resp, err := http.Get(srv.URL + "/agents/counter-agent/main")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "counter-agent", body["agent"])
	assert.Equal(t, map[string]any{"count": float64(0)}, body["state"])
}

func TestInspectionBody_UnknownKind(t *testing.T) {
	_, srv := newTestGateway(t, "")

	resp, err := http.Get(srv.URL + "/agents/mystery-agent/main")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConnectGreeting(t *testing.T) {
	_, srv := newTestGateway(t, "")
	c := dial(t, srv, "/agents/counter-agent/main")

	identityFrame := readFrame(t, c)
	assert.Equal(t, "identity", identityFrame["type"])
	assert.Equal(t, "main", identityFrame["name"])
	assert.Equal(t, "counter-agent", identityFrame["agent"])

	stateFrame := readFrame(t, c)
	assert.Equal(t, "state", stateFrame["type"])
	assert.Equal(t, map[string]any{"count": float64(0)}, stateFrame["state"])
}

func TestConnectGreeting_DefaultIdentity(t *testing.T) {
	_, srv := newTestGateway(t, "")
	c := dial(t, srv, "/agents/counter-agent")

	identityFrame := readFrame(t, c)
	assert.Equal(t, "default", identityFrame["name"])
}

func TestStatePushFansOutExcludingSender(t *testing.T) {
	_, srv := newTestGateway(t, "")

	c1 := dial(t, srv, "/agents/counter-agent/main")
	readFrame(t, c1) // identity
	readFrame(t, c1) // state

	c2 := dial(t, srv, "/agents/counter-agent/main")
	readFrame(t, c2)
	readFrame(t, c2)

	writeFrame(t, c1, `{"type":"state","state":{"count":5}}`)

	frame := readFrame(t, c2)
	assert.Equal(t, "state", frame["type"])
	assert.Equal(t, map[string]any{"count": float64(5)}, frame["state"])

	assertNoFrame(t, c1)

	// The push is visible through the inspection endpoint.
	resp, err := http.Get(srv.URL + "/agents/counter-agent/main")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]any{"count": float64(5)}, body["state"])
}

func TestRPCOverWebSocket(t *testing.T) {
	_, srv := newTestGateway(t, "")

	c := dial(t, srv, "/agents/counter-agent/main")
	readFrame(t, c)
	readFrame(t, c)

	writeFrame(t, c, `{"type":"rpc","id":"1","method":"increment","args":[5]}`)

	// The handler's state update is broadcast to everyone, including
	// the caller, before the rpc response goes back to the caller.
	stateFrame := readFrame(t, c)
	assert.Equal(t, "state", stateFrame["type"])
	assert.Equal(t, map[string]any{"count": float64(5)}, stateFrame["state"])

	respFrame := readFrame(t, c)
	assert.Equal(t, "rpc", respFrame["type"])
	assert.Equal(t, "1", respFrame["id"])
	assert.Equal(t, true, respFrame["success"])
	assert.Equal(t, float64(5), respFrame["result"])
}

func TestRPCUnknownMethodOverWebSocket(t *testing.T) {
	_, srv := newTestGateway(t, "")

	c := dial(t, srv, "/agents/counter-agent/main")
	readFrame(t, c)
	readFrame(t, c)

	writeFrame(t, c, `{"type":"rpc","id":"2","method":"nope","args":[]}`)

	respFrame := readFrame(t, c)
	assert.Equal(t, false, respFrame["success"])
	assert.Equal(t, "Method nope is not callable", respFrame["error"])
}

func TestStateOutlivesReconnect(t *testing.T) {
	_, srv := newTestGateway(t, "")

	c1 := dial(t, srv, "/agents/counter-agent/main")
	readFrame(t, c1)
	readFrame(t, c1)
	writeFrame(t, c1, `{"type":"state","state":{"count":42}}`)
	require.NoError(t, c1.Close(websocket.StatusNormalClosure, "done"))

	c2 := dial(t, srv, "/agents/counter-agent/main")
	readFrame(t, c2) // identity
	stateFrame := readFrame(t, c2)
	assert.Equal(t, map[string]any{"count": float64(42)}, stateFrame["state"])
}

func TestIdentitiesAreIsolated(t *testing.T) {
	_, srv := newTestGateway(t, "")

	c1 := dial(t, srv, "/agents/counter-agent/red")
	readFrame(t, c1)
	readFrame(t, c1)

	c2 := dial(t, srv, "/agents/counter-agent/blue")
	readFrame(t, c2)
	readFrame(t, c2)

	writeFrame(t, c1, `{"type":"state","state":{"count":7}}`)

	// A state change in one identity never reaches another.
	assertNoFrame(t, c2)
}

func TestAgentEndpointAuth(t *testing.T) {
	_, srv := newTestGateway(t, "test-secret")

	t.Run("rejected without token", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/agents/counter-agent/main")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("accepted with query token", func(t *testing.T) {
		verifier, err := auth.NewJWTVerifier([]byte("test-secret"))
		require.NoError(t, err)
		token, err := verifier.Generate("tester", time.Hour)
		require.NoError(t, err)

		resp, err := http.Get(srv.URL + "/agents/counter-agent/main?token=" + token)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("health stays open", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
