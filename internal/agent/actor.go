// ABOUTME: The per-identity actor: owns state, connections, and event handling
// ABOUTME: A mailbox goroutine serializes every operation for one identity

package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/2389/coven-agents/internal/protocol"
	"github.com/2389/coven-agents/internal/state"
	"github.com/2389/coven-agents/internal/store"
)

// ErrStopped is returned when an operation is posted to an actor that
// has already shut down.
var ErrStopped = errors.New("actor stopped")

// Actor is the single logical owner of one agent identity. All
// transport events and state operations for the identity are funneled
// through its mailbox goroutine, so no two of them ever execute
// concurrently and the actor itself needs no locks.
//
// Everything the actor keeps in memory is a cache over the row store;
// the identity survives any number of process restarts between events.
type Actor struct {
	name  string
	def   *Definition
	cell  *state.Cell
	conns *Registry

	logger  *slog.Logger
	mailbox chan func()
	quit    chan struct{}
	stopped sync.Once

	// ctx bounds store operations triggered by transport events.
	ctx context.Context
}

// New creates an actor for the given identity. The identity string is
// router-supplied and opaque; the actor only uses it to scope its rows.
// Call Start before delivering events.
func New(def *Definition, name string, rows store.RowStore, logger *slog.Logger) *Actor {
	actorLogger := logger.With("component", "actor", "agent", def.Kind(), "identity", name)
	return &Actor{
		name:    name,
		def:     def,
		ctx:     context.Background(),
		cell:    state.NewCell(rows, def.Kind()+"/"+name, def.InitialState, def.HasInitialState, logger),
		conns:   NewRegistry(actorLogger),
		logger:  actorLogger,
		mailbox: make(chan func(), 64),
		quit:    make(chan struct{}),
	}
}

// Name returns the identity string this actor owns.
func (a *Actor) Name() string {
	return a.name
}

// Definition returns the agent type definition.
func (a *Actor) Definition() *Definition {
	return a.def
}

// Start launches the mailbox goroutine. The context bounds the actor's
// lifetime: when it is canceled the actor stops accepting events.
func (a *Actor) Start(ctx context.Context) {
	a.ctx = ctx
	go a.run(ctx)
}

// Stop shuts the actor down. Pending mailbox entries are abandoned;
// durable state is untouched and the identity remains resumable.
func (a *Actor) Stop() {
	a.stopped.Do(func() {
		close(a.quit)
	})
}

func (a *Actor) run(ctx context.Context) {
	for {
		select {
		case fn := <-a.mailbox:
			fn()
		case <-a.quit:
			return
		case <-ctx.Done():
			a.Stop()
			return
		}
	}
}

// post schedules fn on the mailbox goroutine.
func (a *Actor) post(fn func()) error {
	select {
	case a.mailbox <- fn:
		return nil
	case <-a.quit:
		return ErrStopped
	}
}

// mailboxKey marks contexts handed to capability handlers, so calls
// back into the actor can run inline instead of posting to the mailbox
// they are already executing on.
type mailboxKey struct{}

// handlerContext returns the context capability handlers run under.
func (a *Actor) handlerContext() context.Context {
	return context.WithValue(a.ctx, mailboxKey{}, a)
}

// call schedules fn on the mailbox goroutine and waits for it to
// finish. When ctx carries this actor's mailbox marker the caller is
// already on the mailbox goroutine and posting would deadlock, so fn
// runs inline.
func (a *Actor) call(ctx context.Context, fn func()) error {
	if ctx != nil && ctx.Value(mailboxKey{}) == a {
		fn()
		return nil
	}

	done := make(chan struct{})
	if err := a.post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.quit:
		return ErrStopped
	}
}

// HandleOpen attaches a connection: it is registered, greeted with the
// identity frame and, unless state is unset, the current state frame.
// Only then does the connect hook run.
func (a *Actor) HandleOpen(c Conn) {
	if err := a.post(func() { a.handleOpen(c) }); err != nil {
		a.logger.Warn("open event dropped", "error", err)
	}
}

// HandleMessage routes one inbound text frame.
func (a *Actor) HandleMessage(c Conn, raw []byte) {
	if err := a.post(func() { a.handleMessage(c, raw) }); err != nil {
		a.logger.Warn("message event dropped", "error", err)
	}
}

// HandleRaw forwards a non-protocol payload (e.g. a binary frame)
// straight to the raw-message hook.
func (a *Actor) HandleRaw(c Conn, raw []byte) {
	if err := a.post(func() { a.rawMessage(c, raw) }); err != nil {
		a.logger.Warn("raw event dropped", "error", err)
	}
}

// HandleClose detaches a connection. Removal is unconditional; the
// close hook runs afterwards and cannot prevent it.
func (a *Actor) HandleClose(c Conn, code int, reason string, wasClean bool) {
	if err := a.post(func() { a.handleClose(c, code, reason, wasClean) }); err != nil {
		a.logger.Warn("close event dropped", "error", err)
	}
}

// HandleError reports a transport error for a connection. The host
// follows up with HandleClose, which performs the removal.
func (a *Actor) HandleError(c Conn, connErr error) {
	if err := a.post(func() { a.handleError(c, connErr) }); err != nil {
		a.logger.Warn("error event dropped", "error", err)
	}
}

// Snapshot returns the current resolved state without side effects
// beyond lazy resolution. Unset state reads as nil.
func (a *Actor) Snapshot(ctx context.Context) (any, error) {
	var (
		value   any
		loadErr error
	)
	if err := a.call(ctx, func() {
		value, _, loadErr = a.cell.Load(a.ctx)
	}); err != nil {
		return nil, err
	}
	return value, loadErr
}

// SetState persists a server-side state change and broadcasts it to
// every attached connection. Safe to call from outside the mailbox
// goroutine, and from capability handlers when passed the context they
// were handed. Hooks run without a context and must use UpdateState.
func (a *Actor) SetState(ctx context.Context, value any) error {
	var writeErr error
	if err := a.call(ctx, func() {
		writeErr = a.setStateLocked(value, nil)
	}); err != nil {
		return err
	}
	return writeErr
}

// State returns the current resolved state from inside a handler or
// hook already running on the mailbox goroutine.
func (a *Actor) State() any {
	value, _, err := a.cell.Load(a.ctx)
	if err != nil {
		a.logger.Error("loading state", "error", err)
		return nil
	}
	return value
}

// UpdateState persists a state change from inside a handler or hook
// already running on the mailbox goroutine, then broadcasts it.
func (a *Actor) UpdateState(value any) error {
	return a.setStateLocked(value, nil)
}

func (a *Actor) handleOpen(c Conn) {
	a.conns.Add(c)

	if frame, err := protocol.EncodeIdentity(a.name, a.def.Kind()); err == nil {
		if err := c.Send(frame); err != nil {
			a.logger.Warn("sending identity frame", "error", err)
		}
	}

	value, res, err := a.cell.Load(a.ctx)
	if err != nil {
		a.logger.Error("loading state on connect", "error", err)
	} else if res != state.Unset {
		if frame, err := protocol.EncodeState(value); err == nil {
			if err := c.Send(frame); err != nil {
				a.logger.Warn("sending state frame", "error", err)
			}
		}
	}

	if hook := a.def.OnConnect; hook != nil {
		a.runHook("connect", func() { hook(a, c) })
	}
}

func (a *Actor) handleMessage(c Conn, raw []byte) {
	in := protocol.DecodeInbound(raw)

	switch in.Kind {
	case protocol.KindStatePush:
		if err := a.setStateLocked(in.State, c); err != nil {
			frame, encErr := protocol.EncodeStateError(err.Error())
			if encErr != nil {
				return
			}
			if sendErr := c.Send(frame); sendErr != nil {
				a.logger.Warn("sending state_error frame", "error", sendErr)
			}
		}

	case protocol.KindRPCRequest:
		resp := a.dispatch(in.Request)
		frame, err := protocol.EncodeRPCResponse(resp)
		if err != nil {
			a.logger.Error("encoding rpc response", "error", err)
			return
		}
		if err := c.Send(frame); err != nil {
			a.logger.Warn("sending rpc response", "error", err, "rpc_id", resp.ID)
		}

	case protocol.KindRPCResponse:
		// Only requests are accepted inbound.
		a.logger.Debug("dropping inbound rpc response frame")

	default:
		a.rawMessage(c, raw)
	}
}

// dispatch runs an RPC request against the capability registry.
func (a *Actor) dispatch(req protocol.RPCRequest) protocol.RPCResponse {
	methods := a.def.Methods
	if methods == nil {
		methods = noMethods
	}
	return methods.Dispatch(a.handlerContext(), a, req)
}

var noMethods = MustMethods()

// setStateLocked persists value and fans the new state out to every
// connection except source. It runs on the mailbox goroutine. A failed
// write leaves the store untouched and suppresses the broadcast.
func (a *Actor) setStateLocked(value any, source Conn) error {
	if err := a.cell.Write(a.ctx, value); err != nil {
		a.logger.Warn("state write rejected", "error", err)
		return err
	}

	frame, err := protocol.EncodeState(value)
	if err != nil {
		a.logger.Error("encoding state frame", "error", err)
	} else {
		a.conns.Broadcast(frame, source)
	}

	if hook := a.def.OnStateChanged; hook != nil {
		a.runHook("state-changed", func() { hook(a, value) })
	}
	return nil
}

func (a *Actor) rawMessage(c Conn, raw []byte) {
	if hook := a.def.OnMessage; hook != nil {
		a.runHook("message", func() { hook(a, c, raw) })
	}
}

func (a *Actor) handleClose(c Conn, code int, reason string, wasClean bool) {
	a.conns.Remove(c)
	if hook := a.def.OnClose; hook != nil {
		a.runHook("close", func() { hook(a, c, code, reason, wasClean) })
	}
}

func (a *Actor) handleError(c Conn, connErr error) {
	a.logger.Warn("connection error", "error", connErr)
	if hook := a.def.OnError; hook != nil {
		a.runHook("error", func() { hook(a, c, connErr) })
	}
}

// runHook executes a user hook, recovering panics so user code cannot
// take the actor down.
func (a *Actor) runHook(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("hook panicked", "hook", name, "panic", r)
		}
	}()
	fn()
}
