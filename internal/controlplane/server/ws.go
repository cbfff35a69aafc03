package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nftmart/gomart/internal/events"
	"github.com/nftmart/gomart/pkg/logger"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPingInterval   = 30 * time.Second
	wsSendBufferSize = 64
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub broadcasts settlement events to connected websocket clients. It
// implements events.Sink; Publish never blocks the engine, slow clients
// get dropped once their send buffer fills up.
type Hub struct {
	mu     sync.Mutex
	conns  map[*wsConn]struct{}
	closed bool
}

type wsConn struct {
	conn *websocket.Conn
	send chan events.Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: map[*wsConn]struct{}{}}
}

// Publish fans the event out to every connected client.
func (h *Hub) Publish(e events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		select {
		case c.send <- e:
		default:
			// 客户端消费太慢,断开它
			delete(h.conns, c)
			close(c.send)
		}
	}
}

// Close disconnects all clients and rejects future connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.conns {
		close(c.send)
	}
	h.conns = map[*wsConn]struct{}{}
}

func (h *Hub) register(c *wsConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		close(c.send)
	}
}

// handleWS upgrades the connection and streams events until the client
// goes away.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("websocket 升级失败: %v", err)
		return
	}
	wc := &wsConn{conn: conn, send: make(chan events.Event, wsSendBufferSize)}
	if !s.hub.register(wc) {
		_ = conn.Close()
		return
	}

	go wc.writeLoop()

	// 读循环只负责发现断连
	defer s.hub.unregister(wc)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case e, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
