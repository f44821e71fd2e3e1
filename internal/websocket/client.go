package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SnapshotSource supplies the open alerts sent when a session attaches.
type SnapshotSource interface {
	GetActiveAlerts(ctx context.Context, orgID string) ([]models.Alert, error)
}

type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	sub     *Subscription
	session *Session
	log     *logger.Logger
}

// writePump pumps messages from the session queue to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.session.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
			return
		case message := <-c.session.Messages():
			err := c.session.Deliver(func() error {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				return c.conn.WriteJSON(message)
			})
			if err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pongs and close frames are processed.
// Any read error tears the session down.
func (c *Client) readPump() {
	defer func() {
		c.hub.Detach(c.sub)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ServeWs upgrades an authenticated request and attaches the session. The
// session is attached before the snapshot is read, so an alert created in
// between may arrive both in the snapshot and as an event; clients
// reconcile by alert id.
func ServeWs(hub *Hub, snapshots SnapshotSource, id models.Identity, queueSize int, w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("WS Upgrade Error: %v", err)
		return
	}

	session := NewSession(uuid.NewString(), id.OrgID, id.UserID, queueSize)
	sub, err := hub.Attach(id.OrgID, session)
	if err != nil {
		log.Warn("WS attach rejected for user %s: %v", id.UserID, err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	alerts, err := snapshots.GetActiveAlerts(r.Context(), id.OrgID)
	if err != nil {
		log.Error("WS snapshot failed for org %s: %v", id.OrgID, err)
		hub.Detach(sub)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "snapshot unavailable"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	err = session.Deliver(func() error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(Message{Type: models.EventSnapshot, Payload: SnapshotPayload{Alerts: alerts}})
	})
	if err != nil {
		log.Warn("WS snapshot write failed for session %s: %v", session.ID, err)
		hub.Detach(sub)
		conn.Close()
		return
	}

	client := &Client{hub: hub, conn: conn, sub: sub, session: session, log: log}
	go client.writePump()
	go client.readPump()
}
