package massive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AliyanOranje/sweepalgo-backend/internal/metrics"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

const (
	defaultBaseURL = "https://api.massive.com"

	// Vendor page-size ceiling for snapshot/reference endpoints
	MaxPageSize = 100

	marketStatusTTL = 60 * time.Second

	// defaultRequestTimeout bounds calls whose caller carries no deadline
	defaultRequestTimeout = 15 * time.Second
)

// Client is the vendor REST client. All components share one instance so
// pacing and the market-status cache are process-wide.
type Client struct {
	apiKey  string
	baseURL string
	timeout time.Duration

	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger

	statusMu      sync.Mutex
	marketStatus  string
	statusFetched time.Time
}

// NewClient creates a vendor REST client. requestTimeout is the deadline
// applied per call when the caller's context carries none.
func NewClient(apiKey, baseURL string, requestTimeout time.Duration, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: requestTimeout,
		// deadlines are context-driven so callers can tighten them per call
		httpClient: &http.Client{},
		// bursty but paced; all vendor fan-out shares this limiter
		limiter: rate.NewLimiter(rate.Every(20*time.Millisecond), 10),
		log:     log.With("component", "massive_client"),
	}
}

// buildURL joins a path with query params and injects the API key
func (c *Client) buildURL(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apiKey", c.apiKey)
	return c.baseURL + path + "?" + params.Encode()
}

// WithAPIKey forcibly sets the apiKey query parameter on a vendor URL.
// next_url cursors may come back without credentials; never trust them.
func (c *Client) WithAPIKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		// textual fallback when the URL does not parse
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		return rawURL + sep + "apiKey=" + url.QueryEscape(c.apiKey)
	}

	q := u.Query()
	q.Set("apiKey", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// get executes a GET against a fully built URL and decodes JSON into out.
// endpoint is the logical name used for metrics and error context.
func (c *Client) get(ctx context.Context, endpoint, fullURL string, out interface{}) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter wait")
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return errors.Wrapf(err, "build request for %s", endpoint)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			metrics.RecordVendorAPICall(endpoint, "timeout", time.Since(start))
			return errors.NewVendorError(0, endpoint, errors.ErrVendorTimeout)
		}
		metrics.RecordVendorAPICall(endpoint, "error", time.Since(start))
		return errors.NewVendorError(0, endpoint, errors.Wrap(errors.ErrVendorUnavailable, err.Error()))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		metrics.RecordVendorAPICall(endpoint, "success", time.Since(start))
	case resp.StatusCode == http.StatusUnauthorized:
		metrics.RecordVendorAPICall(endpoint, "unauthorized", time.Since(start))
		return errors.NewVendorError(resp.StatusCode, endpoint, errors.ErrVendorUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.RecordVendorAPICall(endpoint, "rate_limited", time.Since(start))
		return errors.NewVendorError(resp.StatusCode, endpoint, errors.ErrVendorRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		metrics.RecordVendorAPICall(endpoint, "error", time.Since(start))
		return errors.NewVendorError(resp.StatusCode, endpoint, errors.ErrNotFound)
	default:
		metrics.RecordVendorAPICall(endpoint, "error", time.Since(start))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.NewVendorError(resp.StatusCode, endpoint,
			errors.Wrapf(errors.ErrVendorUnavailable, "status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", endpoint)
	}
	return nil
}

func isTimeout(err error) bool {
	t, ok := err.(interface{ Timeout() bool })
	return ok && t.Timeout()
}

// OptionsSnapshot fetches one page of the options snapshot for an underlying.
// extra params (e.g. expiration_date) are merged into the query.
func (c *Client) OptionsSnapshot(ctx context.Context, underlying string, limit int, extra url.Values) (*SnapshotResponse, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	params := url.Values{}
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	params.Set("limit", strconv.Itoa(limit))

	var out SnapshotResponse
	path := fmt.Sprintf("/v3/snapshot/options/%s", strings.ToUpper(underlying))
	if err := c.get(ctx, "options_snapshot", c.buildURL(path, params), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FollowSnapshotNext follows a next_url cursor, re-injecting the API key
func (c *Client) FollowSnapshotNext(ctx context.Context, nextURL string) (*SnapshotResponse, error) {
	var out SnapshotResponse
	if err := c.get(ctx, "options_snapshot", c.WithAPIKey(nextURL), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OptionContracts fetches one page of reference contracts for an underlying
func (c *Client) OptionContracts(ctx context.Context, underlying string, limit int) (*ContractsResponse, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	params := url.Values{}
	params.Set("underlying_ticker", strings.ToUpper(underlying))
	params.Set("limit", strconv.Itoa(limit))

	var out ContractsResponse
	if err := c.get(ctx, "option_contracts", c.buildURL("/v3/reference/options/contracts", params), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FollowContractsNext follows a contracts next_url cursor
func (c *Client) FollowContractsNext(ctx context.Context, nextURL string) (*ContractsResponse, error) {
	var out ContractsResponse
	if err := c.get(ctx, "option_contracts", c.WithAPIKey(nextURL), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PrevClose returns the previous session close for a ticker
func (c *Client) PrevClose(ctx context.Context, ticker string) (float64, error) {
	path := fmt.Sprintf("/v2/aggs/ticker/%s/prev", strings.ToUpper(ticker))

	var out AggsResponse
	if err := c.get(ctx, "prev_close", c.buildURL(path, nil), &out); err != nil {
		return 0, err
	}
	if len(out.Results) == 0 || out.Results[0].Close <= 0 {
		return 0, errors.Wrapf(errors.ErrNotAvailable, "no previous close for %s", ticker)
	}
	return out.Results[0].Close, nil
}

// MarketStatus returns the current market state, cached for a minute.
// Lookup failures degrade to "open" so ingestion never stalls on this call.
func (c *Client) MarketStatus(ctx context.Context) string {
	c.statusMu.Lock()
	if c.marketStatus != "" && time.Since(c.statusFetched) < marketStatusTTL {
		status := c.marketStatus
		c.statusMu.Unlock()
		return status
	}
	c.statusMu.Unlock()

	var out MarketStatusResponse
	if err := c.get(ctx, "market_status", c.buildURL("/v1/marketstatus/now", nil), &out); err != nil {
		c.log.Warnw("Market status lookup failed", "error", err)
	}
	status := out.Market
	if status == "" {
		status = "open"
	}

	// the degraded answer is cached too, so a dead endpoint is retried
	// once per TTL instead of once per tick
	c.statusMu.Lock()
	c.marketStatus = status
	c.statusFetched = time.Now()
	c.statusMu.Unlock()

	return status
}

// GetRaw proxies an arbitrary vendor path and returns the raw JSON body.
// Used by the pass-through endpoints (bars, quotes, indicators, reference).
func (c *Client) GetRaw(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	var out json.RawMessage
	endpoint := "proxy_" + proxyEndpointLabel(path)
	if err := c.get(ctx, endpoint, c.buildURL(path, params), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// proxyEndpointLabel keeps metric label cardinality bounded for proxied paths
func proxyEndpointLabel(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) >= 2 {
		return parts[0] + "_" + parts[1]
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "unknown"
}
