package realtime

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/thishamdi/digital-store-api/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketConn keeps the websocket import out of hub.go.
type WebSocketConn struct {
	Conn *websocket.Conn
}

func NewWebSocketConn(c *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{Conn: c}
}

// Handler serves GET /ws/orders. Auth runs before the upgrade and leaves
// the user id in locals.
func Handler(h *Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		uid, _ := c.Locals("userId").(string)
		client := &Client{
			ID:     uuid.NewString(),
			UserID: uid,
			Conn:   NewWebSocketConn(c),
			Send:   make(chan []byte, 64),
		}
		h.RegisterClient(client)

		done := make(chan struct{})
		go func() {
			client.writePump()
			close(done)
		}()

		client.readPump()
		h.UnregisterClient(client)
		<-done
	}
}

// readPump only drains control frames; the feed is server to client.
func (cl *Client) readPump() {
	conn := cl.Conn.Conn
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.L.Debug("realtime: read error", "client_id", cl.ID, "error", err)
			}
			return
		}
	}
}

func (cl *Client) writePump() {
	conn := cl.Conn.Conn
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-cl.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				_ = conn.Close()
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
