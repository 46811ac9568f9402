package spot

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

const (
	// DefaultTTL is how long a cached spot price stays fresh
	DefaultTTL = 5 * time.Minute

	// DefaultFetchInterval is the minimum spacing between vendor lookups,
	// shared across all callers
	DefaultFetchInterval = 200 * time.Millisecond
)

// Fetcher resolves an underlying's current price from the vendor
type Fetcher interface {
	PrevClose(ctx context.Context, ticker string) (float64, error)
}

type cacheEntry struct {
	price     float64
	fetchedAt time.Time
}

// Oracle caches underlying spot prices with a TTL and a global gate on
// vendor lookups. It never substitutes strike-derived guesses: when the
// vendor cannot answer, the caller gets ErrNotAvailable and downstream
// skips OTM calculation.
type Oracle struct {
	fetcher Fetcher
	ttl     time.Duration
	gate    *rate.Limiter

	mu    sync.Mutex
	cache map[string]cacheEntry

	log *logger.Logger
}

// NewOracle creates a spot oracle
func NewOracle(fetcher Fetcher, ttl, fetchInterval time.Duration, log *logger.Logger) *Oracle {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if fetchInterval <= 0 {
		fetchInterval = DefaultFetchInterval
	}
	return &Oracle{
		fetcher: fetcher,
		ttl:     ttl,
		gate:    rate.NewLimiter(rate.Every(fetchInterval), 1),
		cache:   make(map[string]cacheEntry),
		log:     log.With("component", "spot_oracle"),
	}
}

// Get returns the spot price for an underlying, from cache when fresh.
// Concurrent cache misses block on the shared gate so at most one vendor
// call goes out per interval.
func (o *Oracle) Get(ctx context.Context, underlying string) (float64, error) {
	ticker := strings.ToUpper(underlying)

	o.mu.Lock()
	if entry, ok := o.cache[ticker]; ok && time.Since(entry.fetchedAt) < o.ttl {
		o.mu.Unlock()
		return entry.price, nil
	}
	o.mu.Unlock()

	// vendor call happens outside the cache lock
	if err := o.gate.Wait(ctx); err != nil {
		return 0, errors.Wrap(errors.ErrNotAvailable, err.Error())
	}

	// another caller may have filled the cache while we waited
	o.mu.Lock()
	if entry, ok := o.cache[ticker]; ok && time.Since(entry.fetchedAt) < o.ttl {
		o.mu.Unlock()
		return entry.price, nil
	}
	o.mu.Unlock()

	price, err := o.fetcher.PrevClose(ctx, ticker)
	if err != nil {
		// quota/credential errors stay quiet; anything else is recorded once
		if !errors.Is(err, errors.ErrVendorRateLimited) && !errors.Is(err, errors.ErrVendorUnauthorized) {
			o.log.Warnw("Spot lookup failed", "ticker", ticker, "error", err)
		}
		return 0, errors.Wrapf(errors.ErrNotAvailable, "spot for %s", ticker)
	}
	if price <= 0 {
		return 0, errors.Wrapf(errors.ErrNotAvailable, "spot for %s", ticker)
	}

	o.mu.Lock()
	o.cache[ticker] = cacheEntry{price: price, fetchedAt: time.Now()}
	o.mu.Unlock()

	return price, nil
}

// Put seeds the cache from out-of-band observations, e.g. snapshot
// payloads that carry the underlying's price
func (o *Oracle) Put(underlying string, price float64) {
	if price <= 0 {
		return
	}
	o.mu.Lock()
	o.cache[strings.ToUpper(underlying)] = cacheEntry{price: price, fetchedAt: time.Now()}
	o.mu.Unlock()
}

// Len returns the number of cached underlyings
func (o *Oracle) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.cache)
}
