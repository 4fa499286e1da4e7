package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/chinmaysolanki/dost-ai/internal/hub"
)

type WSHandler struct {
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub) *WSHandler {
	return &WSHandler{
		hub: h,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

// wsConn adapts a gorilla connection to hub.Conn. The hub drives all writes
// from a single goroutine per connection; the mutex guards against the read
// loop's control-frame writes.
type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) Send(ev hub.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) Close() error {
	return w.c.Close()
}

// Stream upgrades the request and keeps the connection registered until the
// client disconnects. The server is push-only; inbound frames beyond
// ping/pong are ignored.
func (h *WSHandler) Stream(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}

	wc := &wsConn{c: conn}
	connID := h.hub.Register(userID, wc)
	defer h.hub.Unregister(userID, connID)

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}
