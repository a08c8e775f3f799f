package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/enablerdao/rustorium-sub000/core"
)

const (
	pingInterval = 30 * time.Second
	readDeadline = 180 * time.Second
	pushInterval = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub pushes consensus status snapshots to connected websocket clients.
type Hub struct {
	manager *core.ConsensusManager

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewHub creates a hub over the manager.
func NewHub(manager *core.ConsensusManager) *Hub {
	return &Hub{
		manager: manager,
		conns:   make(map[*websocket.Conn]bool),
	}
}

// Run broadcasts the status snapshot on a ticker until the context is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Broadcast(h.manager.Status())
		}
	}
}

// Broadcast sends a payload to every connected client, dropping connections
// that fail to write.
func (h *Hub) Broadcast(payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(payload); err != nil {
			slog.Error("websocket broadcast failed", "error", err)
			delete(h.conns, conn)
			conn.Close()
		}
	}
}

// HandleWebSocket upgrades the request and keeps the connection registered
// until the client goes away.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	// Greet with the current snapshot so clients need not wait a tick, then
	// register for broadcasts.
	conn.WriteJSON(h.manager.Status())

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()
	slog.Info("websocket client connected", "remote", conn.RemoteAddr().String())

	go h.pingLoop(r.Context(), conn)
	h.readLoop(conn)
}

func (h *Hub) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Writes are serialized with Broadcast under the hub lock.
			h.mu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			h.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// readLoop discards incoming frames; the stream is push-only. It unregisters
// the connection on the first read error.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Info("websocket closed by client")
			} else {
				slog.Error("websocket read failed", "error", err)
			}
			return
		}
	}
}
