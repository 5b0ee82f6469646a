package relay

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/localdrop/localdrop/internal/signaling"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Session descriptions fit easily.
	maxMessageSize = 64 * 1024

	sendQueueSize = 256
)

// Client is one WebSocket connection to the relay.
type Client struct {
	// PeerID is assigned when the connection is accepted and lives as long
	// as the connection does.
	PeerID string

	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	deviceClass string
	logger      *slog.Logger

	// room is owned by the hub goroutine.
	room string
}

// NewClient wraps conn with a fresh peer id. deviceClass is used when the
// peer's join message does not report one.
func NewClient(hub *Hub, conn *websocket.Conn, deviceClass string) *Client {
	peerID := uuid.NewString()
	return &Client{
		PeerID:      peerID,
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
		deviceClass: deviceClass,
		logger:      hub.logger.With("peer", peerID),
	}
}

func (c *Client) remoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("connection closed unexpectedly", "error", err)
			}
			return
		}

		msg, err := signaling.Decode(data)
		if !c.hub.submit(inbound{client: c, msg: msg, err: err}) {
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed", "error", err)
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
