package spot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

type mockFetcher struct {
	mu     sync.Mutex
	calls  int32
	price  float64
	err    error
	perTkr map[string]float64
}

func (m *mockFetcher) PrevClose(ctx context.Context, ticker string) (float64, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.perTkr != nil {
		if p, ok := m.perTkr[ticker]; ok {
			return p, nil
		}
	}
	return m.price, nil
}

func newTestOracle(t *testing.T, f Fetcher, ttl, interval time.Duration) *Oracle {
	t.Helper()
	require.NoError(t, logger.Init("error", "development"))
	return NewOracle(f, ttl, interval, logger.Get())
}

func TestOracle_CacheHit(t *testing.T) {
	f := &mockFetcher{price: 642.5}
	o := newTestOracle(t, f, time.Minute, time.Millisecond)

	p1, err := o.Get(context.Background(), "spy")
	require.NoError(t, err)
	assert.Equal(t, 642.5, p1)

	p2, err := o.Get(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, 642.5, p2)

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
}

func TestOracle_GatePacesConcurrentMisses(t *testing.T) {
	f := &mockFetcher{perTkr: map[string]float64{"AAPL": 230, "TSLA": 340, "NVDA": 180}}
	interval := 50 * time.Millisecond
	o := newTestOracle(t, f, time.Minute, interval)

	start := time.Now()
	var wg sync.WaitGroup
	for _, tkr := range []string{"AAPL", "TSLA", "NVDA"} {
		wg.Add(1)
		go func(tkr string) {
			defer wg.Done()
			_, err := o.Get(context.Background(), tkr)
			assert.NoError(t, err)
		}(tkr)
	}
	wg.Wait()

	// three distinct misses share one gate: at least two full intervals
	assert.GreaterOrEqual(t, time.Since(start), 2*interval)
}

func TestOracle_QuotaErrorsQuietNotAvailable(t *testing.T) {
	for _, vendorErr := range []error{errors.ErrVendorRateLimited, errors.ErrVendorUnauthorized} {
		f := &mockFetcher{err: vendorErr}
		o := newTestOracle(t, f, time.Minute, time.Millisecond)

		_, err := o.Get(context.Background(), "SPY")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotAvailable))
	}
}

func TestOracle_PutSeedsCache(t *testing.T) {
	f := &mockFetcher{price: 100}
	o := newTestOracle(t, f, time.Minute, time.Millisecond)

	o.Put("qqq", 480.25)

	p, err := o.Get(context.Background(), "QQQ")
	require.NoError(t, err)
	assert.Equal(t, 480.25, p)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.calls))
}

func TestOracle_TTLExpiry(t *testing.T) {
	f := &mockFetcher{price: 100}
	o := newTestOracle(t, f, 10*time.Millisecond, time.Millisecond)

	_, err := o.Get(context.Background(), "SPY")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = o.Get(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.calls))
}
