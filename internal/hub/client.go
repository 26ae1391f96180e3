package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Subscription actions accepted from clients.
const (
	ActionJoinDevice  = "join_device"
	ActionLeaveDevice = "leave_device"
)

// clientRequest is the inbound control message a web client sends to manage
// its device subscriptions.
type clientRequest struct {
	Action   string `json:"action"`
	DeviceID string `json:"device_id"`
}

// Client sits between one WebSocket connection and the hub.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	logger     *zap.Logger
}

func NewClient(h *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	addr := ""
	if conn != nil {
		addr = conn.RemoteAddr().String()
	}
	return &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		remoteAddr: addr,
		logger:     logger,
	}
}

func (c *Client) RemoteAddr() string { return c.remoteAddr }

// trySend queues a payload without blocking. Reports false when the buffer
// is full, which the hub treats as a dead client.
func (c *Client) trySend(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend is called by the hub exactly once, under its lock, when the
// client is detached.
func (c *Client) closeSend() {
	close(c.send)
}

// ReadPump consumes subscription requests until the connection drops, then
// detaches the client from the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("WebSocket read error", zap.String("remote", c.remoteAddr), zap.Error(err))
			}
			return
		}

		var req clientRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.logger.Debug("Ignoring malformed client request",
				zap.String("remote", c.remoteAddr),
				zap.Error(err),
			)
			continue
		}

		switch req.Action {
		case ActionJoinDevice:
			if req.DeviceID != "" {
				c.hub.Join(c, req.DeviceID)
			}
		case ActionLeaveDevice:
			if req.DeviceID != "" {
				c.hub.Leave(c, req.DeviceID)
			}
		}
	}
}

// WritePump pushes queued events to the connection and keeps it alive with
// pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
