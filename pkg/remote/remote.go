// Package remote exposes the game control surface over WebSocket so a game
// running elsewhere can be driven by the chord pipeline.
package remote

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/metalblueberry/chordsnake/pkg/command"
	"github.com/metalblueberry/chordsnake/pkg/dispatch"
)

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
)

// Event is the JSON message sent to clients.
type Event struct {
	Type      string    `json:"type"`
	Direction string    `json:"direction,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Time      time.Time `json:"time"`
}

type client struct {
	id   uuid.UUID
	send chan []byte
}

// Hub is a dispatch.Surface that broadcasts moves and mode changes to all
// connected WebSocket clients. It is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *slog.Logger
	now     func() time.Time
}

var _ dispatch.Surface = (*Hub)(nil)

// NewHub returns an empty hub. A nil logger uses slog.Default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
		now:     time.Now,
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubmitMove broadcasts a move event.
func (h *Hub) SubmitMove(d command.Direction) {
	h.broadcast(Event{Type: "move", Direction: d.String(), Time: h.now()})
}

// SetMode broadcasts a mode event.
func (h *Hub) SetMode(m dispatch.Mode) {
	h.broadcast(Event{Type: "mode", Mode: m.String(), Time: h.now()})
}

// broadcast never blocks: clients whose buffer is full miss the event.
func (h *Hub) broadcast(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("client too slow, dropped event", "client", c.id, "type", ev.Type)
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: checkOrigin,
}

// checkOrigin accepts same-origin requests and origins on loopback or
// private networks.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		slog.Warn("rejected WebSocket connection: invalid origin URL", "origin", origin)
		return false
	}

	host := u.Hostname()
	if host == "localhost" {
		return true
	}

	requestHost := r.Host
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = h
	}
	if host == requestHost {
		return true
	}

	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate()) {
		return true
	}

	slog.Warn("rejected WebSocket connection", "origin", origin, "host", host)
	return false
}

// ServeHTTP upgrades the request and streams events until the client goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", "error", err)
		return
	}

	c := &client{id: uuid.New(), send: make(chan []byte, clientBuffer)}
	h.add(c)
	h.logger.Info("client connected", "client", c.id, "remote", r.RemoteAddr)

	go h.readLoop(conn, c)
	h.writeLoop(conn, c)
	h.logger.Info("client disconnected", "client", c.id)
}

// readLoop discards client messages and unregisters the client once the
// connection fails.
func (h *Hub) readLoop(conn *websocket.Conn, c *client) {
	defer h.remove(c)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, c *client) {
	defer conn.Close()
	for msg := range c.send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Warn("failed to write event", "client", c.id, "error", err)
			h.remove(c)
			return
		}
	}
}
