// ABOUTME: WebSocket transport between clients and agent actors
// ABOUTME: Accepts upgrades, pumps frames into the actor, and maps close statuses

package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/2389/coven-agents/internal/agent"
)

// sendTimeout bounds one outbound frame so a stalled client cannot
// block the owning actor's mailbox.
const sendTimeout = 10 * time.Second

// wsConn adapts a websocket connection to the agent.Conn interface.
// The transport layer (this file) owns the connection; the actor's
// registry only holds a reference.
type wsConn struct {
	id   string
	conn *websocket.Conn
}

func (c *wsConn) Send(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// serveWebSocket upgrades the request and pumps frames into the actor
// until the connection dies. Text frames go through protocol routing;
// binary frames go straight to the raw-message path.
func (g *Gateway) serveWebSocket(w http.ResponseWriter, r *http.Request, actor *agent.Actor) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		g.logger.Warn("websocket accept failed", "error", err, "identity", actor.Name())
		return
	}

	wc := &wsConn{id: uuid.NewString(), conn: c}
	logger := g.logger.With("conn_id", wc.id, "identity", actor.Name())
	logger.Info("connection attached")

	actor.HandleOpen(wc)

	ctx := r.Context()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			code, reason, clean := closeDetails(err)
			if !clean {
				actor.HandleError(wc, err)
			}
			actor.HandleClose(wc, code, reason, clean)
			logger.Info("connection detached", "code", code, "clean", clean)
			_ = c.CloseNow()
			return
		}

		if typ == websocket.MessageText {
			actor.HandleMessage(wc, data)
		} else {
			actor.HandleRaw(wc, data)
		}
	}
}

// closeDetails maps a read error to the close code, reason, and
// cleanliness reported to the actor.
func closeDetails(err error) (code int, reason string, clean bool) {
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		clean = ce.Code == websocket.StatusNormalClosure || ce.Code == websocket.StatusGoingAway
		return int(ce.Code), ce.Reason, clean
	}
	return int(websocket.StatusAbnormalClosure), err.Error(), false
}
