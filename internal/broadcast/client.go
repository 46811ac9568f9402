package broadcast

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024

	// DefaultSendBuffer is the per-client outgoing frame buffer
	DefaultSendBuffer = 256
)

// Client is one WebSocket subscriber. Its ticker set narrows what it
// receives: empty means everything, "*" means everything, otherwise only
// flows whose underlying is in the set.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu      sync.RWMutex
	closed  bool
	tickers map[string]struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Client{
		id:      uuid.NewString(),
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		tickers: make(map[string]struct{}),
	}
}

// ID returns the client's connection id
func (c *Client) ID() string { return c.id }

// wantsTicker reports whether a flow for the given underlying should be
// delivered to this client
func (c *Client) wantsTicker(ticker string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.tickers) == 0 {
		return true
	}
	if _, ok := c.tickers["*"]; ok {
		return true
	}
	_, ok := c.tickers[strings.ToUpper(ticker)]
	return ok
}

// enqueue hands a frame to the client's writer without blocking. A full
// buffer drops the frame; slow consumers lose data, never stall the hub.
// Frames arriving after shutdown are dropped.
func (c *Client) enqueue(msg []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// shutdown tears the client down exactly once: the send channel closes so
// the writer drains and exits, and the connection closes so the reader
// unblocks. The closed flag keeps concurrent enqueues off the channel.
func (c *Client) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
	}
}

// controlMessage is the client-to-server protocol
type controlMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Ticker  string `json:"ticker,omitempty"`
}

// handleControl applies one inbound control frame and returns the ack to
// send back, or nil for frames that need none
func (c *Client) handleControl(raw []byte) []byte {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil
	}

	switch msg.Type {
	case "subscribe":
		// channel registration; the ticker set is untouched
		return mustMarshal(map[string]any{
			"type":    "subscribed",
			"channel": msg.Channel,
		})

	case "subscribe-ticker":
		t := strings.ToUpper(strings.TrimSpace(msg.Ticker))
		if t == "" {
			return nil
		}
		c.mu.Lock()
		c.tickers[t] = struct{}{}
		c.mu.Unlock()
		return mustMarshal(map[string]any{
			"type":   "subscribed-ticker",
			"ticker": t,
		})

	case "unsubscribe-ticker":
		t := strings.ToUpper(strings.TrimSpace(msg.Ticker))
		if t == "" {
			return nil
		}
		c.mu.Lock()
		delete(c.tickers, t)
		delete(c.tickers, "*")
		c.mu.Unlock()
		return mustMarshal(map[string]any{
			"type":   "unsubscribed-ticker",
			"ticker": t,
		})
	}
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debugw("Subscriber closed unexpectedly", "client_id", c.id, "error", err)
			}
			return
		}
		if ack := c.handleControl(message); ack != nil {
			c.enqueue(ack)
		}
	}
}

func (c *Client) writePump() {
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

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
