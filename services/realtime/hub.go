package realtimesvc

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/mwalimu/core"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub keeps the websocket connections of online users and pushes RealtimeEvents to them.
// A user may hold several connections (tabs, devices).
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   core.Logger

	connections prometheus.Gauge
	pushed      *prometheus.CounterVec
	dropped     prometheus.Counter
}

var _ core.RealtimePusher = (*Hub)(nil)

// NewHub returns a Hub; its metrics are registered on reg when not nil.
func NewHub(logger core.Logger, reg prometheus.Registerer) *Hub {
	h := &Hub{
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // authenticated by JWT
		},
		logger: logger,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mwalimu",
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Number of open websocket connections.",
		}),
		pushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mwalimu",
			Subsystem: "realtime",
			Name:      "events_pushed_total",
			Help:      "Number of realtime events queued to connections, by type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mwalimu",
			Subsystem: "realtime",
			Name:      "events_dropped_total",
			Help:      "Number of realtime events dropped because a connection was too slow.",
		}),
	}
	if reg != nil {
		reg.MustRegister(h.connections, h.pushed, h.dropped)
	}
	return h
}

// Serve upgrades the request to a websocket attached to userID, and blocks until the connection is closed.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrap(err, "upgrading websocket")
	}
	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBufferSize)}
	h.add(c)

	go h.writePump(c)
	h.readPump(c)
	return nil
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	conns, ok := h.clients[c.userID]
	if !ok {
		conns = make(map[*client]struct{})
		h.clients[c.userID] = conns
	}
	conns[c] = struct{}{}
	h.mu.Unlock()
	h.connections.Inc()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if conns, ok := h.clients[c.userID]; ok {
		if _, ok = conns[c]; ok {
			delete(conns, c)
			h.connections.Dec()
		}
		if len(conns) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()
	c.close()
}

// readPump discards client messages; it only keeps the connection alive and notices disconnections.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket closed unexpectedly", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// queue sends msg to c without blocking; a full buffer means a stalled client, which is disconnected.
func (h *Hub) queue(c *client, msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		h.dropped.Inc()
		go h.remove(c)
		return false
	}
}

func (h *Hub) encode(evt core.RealtimeEvent) ([]byte, bool) {
	msg, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("encoding realtime event", err, map[string]interface{}{"type": evt.Type})
		return nil, false
	}
	return msg, true
}

func (h *Hub) Push(userID string, evt core.RealtimeEvent) bool {
	msg, ok := h.encode(evt)
	if !ok {
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var delivered bool
	for c := range h.clients[userID] {
		if h.queue(c, msg) {
			delivered = true
			h.pushed.WithLabelValues(evt.Type).Inc()
		}
	}
	return delivered
}

func (h *Hub) Broadcast(evt core.RealtimeEvent) int {
	msg, ok := h.encode(evt)
	if !ok {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var reached int
	for _, conns := range h.clients {
		var delivered bool
		for c := range conns {
			if h.queue(c, msg) {
				delivered = true
				h.pushed.WithLabelValues(evt.Type).Inc()
			}
		}
		if delivered {
			reached++
		}
	}
	return reached
}

// Online reports whether userID has an open connection.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	for _, conns := range clients {
		for c := range conns {
			c.close()
			h.connections.Dec()
		}
	}
}
