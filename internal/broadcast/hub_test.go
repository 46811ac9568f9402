package broadcast

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	require.NoError(t, logger.Init("error", "development"))
	return NewHub(8, logger.Get())
}

func addClient(h *Hub, tickers ...string) *Client {
	c := newClient(h, nil, 8)
	for _, tk := range tickers {
		c.tickers[tk] = struct{}{}
	}
	h.register(c)
	return c
}

func recvFrame(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case raw := <-c.send:
		var out map[string]any
		require.NoError(t, json.Unmarshal(raw, &out))
		return out
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return nil
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func TestPublish_TickerSelectivity(t *testing.T) {
	h := newTestHub(t)
	spyOnly := addClient(h, "SPY")
	wildcard := addClient(h, "*")
	everything := addClient(h) // empty set receives all

	h.Publish(&flow.Flow{Ticker: "SPY", Premium: 1})

	for _, c := range []*Client{spyOnly, wildcard, everything} {
		frame := recvFrame(t, c)
		assert.Equal(t, "options-trade", frame["type"])
		assert.NotEmpty(t, frame["timestamp"])
	}

	h.Publish(&flow.Flow{Ticker: "QQQ", Premium: 1})

	assertEmpty(t, spyOnly)
	recvFrame(t, wildcard)
	recvFrame(t, everything)
}

func TestPublish_SlowSubscriberDropsNotStalls(t *testing.T) {
	h := newTestHub(t)
	c := newClient(h, nil, 2)
	h.register(c)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish(&flow.Flow{Ticker: "SPY"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
	assert.Len(t, c.send, 2)
}

func TestControl_SubscribeTicker(t *testing.T) {
	h := newTestHub(t)
	c := newClient(h, nil, 8)

	ack := c.handleControl([]byte(`{"type":"subscribe-ticker","ticker":"spy"}`))
	require.NotNil(t, ack)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(ack, &parsed))
	assert.Equal(t, "subscribed-ticker", parsed["type"])
	assert.Equal(t, "SPY", parsed["ticker"])

	assert.True(t, c.wantsTicker("SPY"))
	assert.False(t, c.wantsTicker("QQQ"))
}

func TestControl_UnsubscribeClearsWildcard(t *testing.T) {
	h := newTestHub(t)
	c := newClient(h, nil, 8)

	c.handleControl([]byte(`{"type":"subscribe-ticker","ticker":"*"}`))
	c.handleControl([]byte(`{"type":"subscribe-ticker","ticker":"SPY"}`))
	require.True(t, c.wantsTicker("QQQ"))

	ack := c.handleControl([]byte(`{"type":"unsubscribe-ticker","ticker":"SPY"}`))
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(ack, &parsed))
	assert.Equal(t, "unsubscribed-ticker", parsed["type"])

	// both SPY and the wildcard are gone; the set is now empty so the
	// client is back to receiving everything
	c.mu.RLock()
	assert.Empty(t, c.tickers)
	c.mu.RUnlock()
	assert.True(t, c.wantsTicker("QQQ"))
}

func TestControl_SubscribeChannelAck(t *testing.T) {
	h := newTestHub(t)
	c := newClient(h, nil, 8)

	ack := c.handleControl([]byte(`{"type":"subscribe","channel":"options-flow"}`))
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(ack, &parsed))
	assert.Equal(t, "subscribed", parsed["type"])
	assert.Equal(t, "options-flow", parsed["channel"])
}

func TestControl_GarbageIgnored(t *testing.T) {
	h := newTestHub(t)
	c := newClient(h, nil, 8)

	assert.Nil(t, c.handleControl([]byte("not json")))
	assert.Nil(t, c.handleControl([]byte(`{"type":"subscribe-ticker"}`)))
	assert.Nil(t, c.handleControl([]byte(`{"type":"unknown"}`)))
}

func TestUnregisterIdempotent(t *testing.T) {
	h := newTestHub(t)
	c := addClient(h, "SPY")
	require.Equal(t, 1, h.Count())

	h.unregister(c)
	h.unregister(c) // second call is a no-op, no double close
	assert.Equal(t, 0, h.Count())
}

func TestClose(t *testing.T) {
	h := newTestHub(t)
	addClient(h)
	addClient(h)
	require.Equal(t, 2, h.Count())

	h.Close()
	assert.Equal(t, 0, h.Count())
}

func TestClose_RacesWithInboundControl(t *testing.T) {
	h := newTestHub(t)
	c := addClient(h)

	// a reader handling control frames while the hub shuts down must not
	// land a send on a closed channel
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			if ack := c.handleControl([]byte(`{"type":"subscribe","channel":"options-flow"}`)); ack != nil {
				c.enqueue(ack)
			}
		}
	}()

	h.Close()
	<-done

	assert.False(t, c.enqueue([]byte(`{"type":"connected"}`)))
	assert.Equal(t, 0, h.Count())
}

func TestPublish_AfterCloseDropsQuietly(t *testing.T) {
	h := newTestHub(t)
	c := addClient(h)
	h.Close()

	h.Publish(&flow.Flow{Ticker: "SPY"})
	assert.False(t, c.enqueue([]byte(`{}`)))
}
