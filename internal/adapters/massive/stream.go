package massive

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AliyanOranje/sweepalgo-backend/internal/metrics"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/reconnect"
)

const (
	defaultWSURL = "wss://socket.polygon.io/options"

	wsHandshakeTimeout = 10 * time.Second
	wsAuthTimeout      = 15 * time.Second
	wsReadTimeout      = 60 * time.Second
	wsWriteTimeout     = 5 * time.Second
	wsPingInterval     = 30 * time.Second

	// Fixed delay between reconnect attempts
	wsReconnectDelay = 5 * time.Second
)

// StreamState tracks the session lifecycle
type StreamState string

const (
	StateDisconnected   StreamState = "disconnected"
	StateConnecting     StreamState = "connecting"
	StateAuthenticating StreamState = "authenticating"
	StateSubscribed     StreamState = "subscribed"
	StateStreaming      StreamState = "streaming"
)

// TradeHandler receives each options trade tick from the stream
type TradeHandler func(TradeTick)

// Stream is the vendor options WebSocket session. A single Run loop owns
// the connection, so attempts are serialised and no duplicate sessions
// can exist.
type Stream struct {
	url     string
	apiKey  string
	tickers []string
	handler TradeHandler

	mu       sync.RWMutex
	conn     *websocket.Conn
	state    StreamState
	pingStop chan struct{}

	wg          sync.WaitGroup
	reconnector *reconnect.Manager
	log         *logger.Logger
}

// NewStream creates the vendor stream session. tickers are underlyings;
// each subscribes as "O.<TKR>*".
func NewStream(wsURL, apiKey string, tickers []string, handler TradeHandler, log *logger.Logger) *Stream {
	if wsURL == "" {
		wsURL = defaultWSURL
	}
	return &Stream{
		url:     wsURL,
		apiKey:  apiKey,
		tickers: tickers,
		handler: handler,
		state:   StateDisconnected,
		reconnector: reconnect.NewManager(reconnect.Config{
			MinBackoff:        wsReconnectDelay,
			MaxBackoff:        wsReconnectDelay,
			BackoffMultiplier: 1.0,
			MaxRetries:        -1, // reconnect forever
			HeartbeatTimeout:  wsReadTimeout,
		}, log.With("component", "massive_stream_reconnect")),
		log: log.With("component", "massive_stream"),
	}
}

// State returns the current session state
func (s *Stream) State() StreamState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Stream) setState(st StreamState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run owns the session until ctx is cancelled: connect, authenticate,
// subscribe, read, and reconnect after a fixed delay on any failure.
func (s *Stream) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := s.connect(ctx); err != nil {
			s.setState(StateDisconnected)
			s.reconnector.RecordFailure()
			metrics.StreamReconnects.WithLabelValues("failed").Inc()
			s.log.Errorw("Stream connect failed", "error", err)
		} else {
			s.reconnector.RecordSuccess()
			metrics.StreamReconnects.WithLabelValues("success").Inc()

			s.readLoop(ctx)
			s.teardown()
			s.setState(StateDisconnected)
		}

		if ctx.Err() != nil {
			return
		}

		select {
		case <-time.After(s.reconnector.GetBackoff()):
		case <-ctx.Done():
			return
		}
	}
}

// connect dials, authenticates, and subscribes
func (s *Stream) connect(ctx context.Context) error {
	s.setState(StateConnecting)
	s.log.Infow("Connecting to vendor options stream", "url", s.url)

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return errors.Wrap(err, "dial vendor stream")
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.setState(StateAuthenticating)
	if err := s.writeJSON(map[string]string{"action": "auth", "params": s.apiKey}); err != nil {
		conn.Close()
		return errors.Wrap(err, "send auth")
	}

	if err := s.awaitStatus(conn, "auth_success"); err != nil {
		conn.Close()
		return err
	}

	params := make([]string, 0, len(s.tickers))
	for _, t := range s.tickers {
		params = append(params, "O."+strings.ToUpper(t)+"*")
	}
	if err := s.writeJSON(map[string]string{"action": "subscribe", "params": strings.Join(params, ",")}); err != nil {
		conn.Close()
		return errors.Wrap(errors.ErrWSSubscriptionFailed, err.Error())
	}

	s.setState(StateSubscribed)
	s.log.Infow("Subscribed to options trades", "tickers", len(s.tickers))

	s.mu.Lock()
	s.pingStop = make(chan struct{})
	stop := s.pingStop
	s.mu.Unlock()

	s.wg.Add(1)
	go s.pingLoop(conn, stop)

	return nil
}

// awaitStatus reads control frames until the wanted status arrives.
// The vendor emits a "connected" status before the auth result; anything
// that is not a status frame is skipped.
func (s *Stream) awaitStatus(conn *websocket.Conn, want string) error {
	deadline := time.Now().Add(wsAuthTimeout)
	for time.Now().Before(deadline) {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return err
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read during handshake")
		}

		var frames []statusMessage
		if err := json.Unmarshal(msg, &frames); err != nil {
			continue
		}

		for _, f := range frames {
			if f.Event != "status" {
				continue
			}
			switch f.Status {
			case want:
				return nil
			case "auth_failed":
				return errors.Wrap(errors.ErrWSAuthFailed, f.Message)
			}
		}
	}
	return errors.Wrapf(errors.ErrTimeout, "no %s within %s", want, wsAuthTimeout)
}

// readLoop consumes frames until close, error, or cancellation
func (s *Stream) readLoop(ctx context.Context) {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			s.log.Errorf("Failed to set read deadline: %v", err)
			return
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Info("Vendor stream closed normally")
				return
			}
			if ctx.Err() != nil {
				return
			}
			s.log.Errorf("Stream read error: %v", err)
			return
		}

		s.reconnector.RecordMessageReceived()
		s.dispatch(msg)
	}
}

// dispatch routes a frame; the vendor batches events as a JSON array
func (s *Stream) dispatch(msg []byte) {
	var raws []json.RawMessage
	if err := json.Unmarshal(msg, &raws); err != nil {
		s.log.Debugf("Unparseable stream frame: %v", err)
		return
	}

	for _, raw := range raws {
		var head struct {
			Event string `json:"ev"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			continue
		}

		switch head.Event {
		case "O":
			var tick TradeTick
			if err := json.Unmarshal(raw, &tick); err != nil {
				s.log.Debugf("Bad trade tick: %v", err)
				continue
			}
			if s.State() != StateStreaming {
				s.setState(StateStreaming)
			}
			metrics.IngestTicks.WithLabelValues("stream").Inc()
			if s.handler != nil {
				s.handler(tick)
			}
		case "status":
			var st statusMessage
			if err := json.Unmarshal(raw, &st); err == nil {
				s.log.Debugw("Stream status", "status", st.Status, "message", st.Message)
			}
		}
	}
}

// pingLoop keeps the connection alive for one session
func (s *Stream) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Debugf("Ping failed: %v", err)
				return
			}
		}
	}
}

func (s *Stream) writeJSON(v interface{}) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return errors.ErrWSNotConnected
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}

// teardown closes the current connection and waits for its goroutines
func (s *Stream) teardown() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	if s.pingStop != nil {
		close(s.pingStop)
		s.pingStop = nil
	}
	s.mu.Unlock()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}

	s.wg.Wait()
}

// Close tears the session down; Run exits once its context is cancelled
func (s *Stream) Close() {
	s.teardown()
	s.setState(StateDisconnected)
}

// Stats exposes reconnect statistics for the health surface
func (s *Stream) Stats() reconnect.Stats {
	return s.reconnector.GetStats()
}
