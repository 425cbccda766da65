// Package stream broadcasts soft-body vertex frames to websocket clients.
package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 4 // frames queued per client before frames are dropped
	commandQueue = 64
	writeWait    = 5 * time.Second
)

// BodyFrame is the state of one body in a frame.
type BodyFrame struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Asleep    bool      `json:"asleep"`
	Positions []float32 `json:"positions"`         // packed xyz
	Indices   []int32   `json:"indices,omitempty"` // only in the frame sent on connect
}

// Frame is one broadcast message.
type Frame struct {
	Type   string      `json:"type"` // "mesh" on connect, "positions" afterwards
	Tick   int32       `json:"tick"`
	Bodies []BodyFrame `json:"bodies"`
}

// CommandType identifies a client request.
type CommandType string

const (
	CommandWake    CommandType = "wake"
	CommandImpulse CommandType = "impulse"
	CommandReset   CommandType = "reset"
)

// Command is a request sent by a client.
type Command struct {
	Type    CommandType `json:"type"`
	Body    uint64      `json:"body"`
	Impulse [3]float64  `json:"impulse,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and fans frames out to them. A slow client loses frames
// instead of stalling the simulation.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  []byte // last frame with indices, sent to new clients
	closed  bool

	commands chan Command
	dropped  uint64
}

// NewHub creates a hub. A nil logger uses slog.Default().
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:   logger,
		clients:  make(map[*client]struct{}),
		commands: make(chan Command, commandQueue),
	}
}

// ServeHTTP upgrades the request to a websocket and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.latest != nil {
		c.send <- h.latest
	}
	h.mu.Unlock()
	h.logger.Info("stream client connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

// readPump decodes commands until the connection fails, then unregisters the client.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("stream read failed", "error", err)
			}
			return
		}
		select {
		case h.commands <- cmd:
		default:
			h.logger.Warn("stream command dropped", "type", cmd.Type)
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast sends f to every client. The copy with indices is kept for clients that connect
// later; connected clients receive positions only.
func (h *Hub) Broadcast(f Frame) error {
	full := f
	full.Type = "mesh"
	latest, err := json.Marshal(full)
	if err != nil {
		return err
	}

	slim := Frame{Type: "positions", Tick: f.Tick, Bodies: make([]BodyFrame, len(f.Bodies))}
	for i, b := range f.Bodies {
		b.Indices = nil
		slim.Bodies[i] = b
	}
	msg, err := json.Marshal(slim)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = latest
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped++
		}
	}
	return nil
}

// Commands returns the queue of client requests. The simulation drains it once per tick.
func (h *Hub) Commands() <-chan Command {
	return h.commands
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of frames discarded for slow clients.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// Server serves a hub at /ws on addr.
type Server struct {
	srv *http.Server
	hub *Hub
}

// NewServer creates a server for hub on addr.
func NewServer(addr string, hub *Hub) *Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	return &Server{
		srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		hub: hub,
	}
}

// Start listens in the background. Listen errors are logged.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.hub.logger.Error("stream server stopped", "addr", s.srv.Addr, "error", err)
		}
	}()
	s.hub.logger.Info("stream server listening", "addr", s.srv.Addr)
}

// Close disconnects clients and stops the listener.
func (s *Server) Close() error {
	s.hub.Close()
	return s.srv.Close()
}
