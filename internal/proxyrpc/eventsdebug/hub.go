// Package eventsdebug fans the proxy event stream a ClientContext
// already drains out to local websocket listeners, for an operator
// watching connection lifecycle events live during a debugging
// session. It is strictly optional: nothing in pkg/mcmclient requires
// a Hub to be attached, and a Client with no Hub behaves exactly as
// before.
package eventsdebug

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/open-mcm/mesh-dataplane/internal/mlog"
	"github.com/open-mcm/mesh-dataplane/internal/proxyrpc"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub tracks the websocket connections currently subscribed to the
// event fan-out and broadcasts every Event it is given to each of
// them.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	log   zerolog.Logger
}

// NewHub constructs an empty Hub ready to accept subscribers.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]struct{}),
		log:   mlog.Component("eventsdebug"),
	}
}

// ServeHTTP upgrades the request to a websocket and registers it as a
// subscriber until the client disconnects or the connection errors.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("eventsdebug: upgrade failed")
		return
	}
	h.add(conn)
	defer h.remove(conn)

	// Subscribers don't send anything meaningful; read until the socket
	// closes so gorilla's control-frame handling (ping/pong, close) runs.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) add(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
	c.Close()
}

// Broadcast writes evt as JSON to every currently subscribed websocket.
// A subscriber whose write fails is dropped rather than retried.
func (h *Hub) Broadcast(evt *proxyrpc.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if err := c.WriteJSON(evt); err != nil {
			delete(h.conns, c)
			c.Close()
		}
	}
}

// Count reports the number of currently subscribed websockets.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
