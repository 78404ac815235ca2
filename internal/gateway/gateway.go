// ABOUTME: Gateway orchestrator exposing agent actors over HTTP and WebSocket
// ABOUTME: Manages the actor host, store, auth middleware, and server lifecycle

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/2389/coven-agents/internal/agent"
	"github.com/2389/coven-agents/internal/auth"
	"github.com/2389/coven-agents/internal/config"
	"github.com/2389/coven-agents/internal/store"
)

// Gateway orchestrates the coven-agents server: it owns the row store,
// the actor host, and the HTTP server that accepts agent connections.
type Gateway struct {
	config     *config.Config
	host       *Host
	store      store.RowStore
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates and returns a store based on config and environment.
func initStore(cfg *config.Config) (store.RowStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("COVEN_AGENTS_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
// Register agent definitions on the returned gateway before Run.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	host := NewHost(s, logger)

	g := &Gateway{
		config: cfg,
		host:   host,
		store:  s,
		logger: logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)

	// Agent endpoints - auth required if a JWT secret is configured
	agentHandler := http.Handler(http.HandlerFunc(g.handleAgents))
	if cfg.Auth.JWTSecret != "" {
		verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		agentHandler = auth.Middleware(verifier, logger)(agentHandler)
		logger.Info("auth middleware enabled on agent endpoints")
	} else {
		logger.Warn("auth disabled - no jwt_secret configured")
	}
	mux.Handle("/agents/", agentHandler)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// Register adds an agent type definition to the host.
func (g *Gateway) Register(def *agent.Definition) error {
	return g.host.Register(def)
}

// Host returns the actor host, mainly for server-side state access.
func (g *Gateway) Host() *Host {
	return g.host
}

// Handler returns the root HTTP handler, exposed for tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled
// or the server fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := g.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// Shutdown gracefully stops the server, the actors, and the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	g.host.Shutdown()

	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady reports readiness along with the number of running actors.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d actors)", g.host.ActorCount())
}

// handleAgents routes /agents/<kind>/<name> to the owning actor. A
// WebSocket upgrade attaches a connection; any other request answers
// with the inspection body. A missing name selects "default".
func (g *Gateway) handleAgents(w http.ResponseWriter, r *http.Request) {
	kind, name, ok := splitAgentPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	actor, err := g.host.GetOrCreate(kind, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if isWebSocketUpgrade(r) {
		g.serveWebSocket(w, r, actor)
		return
	}

	g.serveSnapshot(w, r, actor)
}

// splitAgentPath parses /agents/<kind>[/<name>] into its parts.
func splitAgentPath(path string) (kind, name string, ok bool) {
	trimmed := strings.Trim(strings.TrimPrefix(path, "/agents"), "/")
	if trimmed == "" {
		return "", "", false
	}

	parts := strings.Split(trimmed, "/")
	switch len(parts) {
	case 1:
		return parts[0], "default", true
	case 2:
		if parts[1] == "" {
			return parts[0], "default", true
		}
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// serveSnapshot answers a plain request with the agent's current state.
func (g *Gateway) serveSnapshot(w http.ResponseWriter, r *http.Request, actor *agent.Actor) {
	snapshot, err := actor.Snapshot(r.Context())
	if err != nil {
		g.logger.Error("reading snapshot", "error", err, "identity", actor.Name())
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"agent": actor.Definition().Kind(),
		"state": snapshot,
	}); err != nil {
		g.logger.Warn("writing snapshot response", "error", err)
	}
}
