package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
	"github.com/AliyanOranje/sweepalgo-backend/internal/metrics"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// cross-origin policy lives in the HTTP middleware
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans enriched flows out to WebSocket subscribers. Publishing is
// fire-and-forget: a subscriber whose buffer is full loses the frame and
// stays registered.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	sendBuffer int
	log        *logger.Logger
}

// NewHub creates a broadcast hub
func NewHub(sendBuffer int, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		sendBuffer: sendBuffer,
		log:        log.With("component", "broadcast_hub"),
	}
}

// HandleWS upgrades the request and runs the subscriber until it closes.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	c := newClient(h, conn, h.sendBuffer)
	h.register(c)

	c.enqueue(mustMarshal(map[string]any{
		"type":      "connected",
		"clientId":  c.id,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}))

	go c.writePump()
	go c.readPump()
}

// Publish delivers a flow to every subscriber whose ticker set admits it
func (h *Hub) Publish(f *flow.Flow) {
	frame, err := json.Marshal(map[string]any{
		"type":      "options-trade",
		"data":      f,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.log.Errorw("Flow marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if !c.wantsTicker(f.Ticker) {
			continue
		}
		if c.enqueue(frame) {
			metrics.BroadcastFrames.WithLabelValues("sent").Inc()
		} else {
			metrics.BroadcastFrames.WithLabelValues("dropped").Inc()
			h.log.Debugw("Dropped frame for slow subscriber", "client_id", c.id)
		}
	}
}

// Count returns the number of connected subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		c.shutdown()
		delete(h.clients, id)
	}
	metrics.BroadcastSubscribers.Set(0)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	metrics.BroadcastSubscribers.Set(float64(n))
	h.log.Infow("Subscriber connected", "client_id", c.id, "total", n)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	c.shutdown()
	n := len(h.clients)
	h.mu.Unlock()

	metrics.BroadcastSubscribers.Set(float64(n))
	h.log.Infow("Subscriber disconnected", "client_id", c.id, "total", n)
}
