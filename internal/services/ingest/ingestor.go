package ingest

import (
	"context"
	"net/url"
	"strings"

	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/config"
	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/massive"
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
	"github.com/AliyanOranje/sweepalgo-backend/internal/metrics"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/enrich"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

// VendorAPI is the slice of the vendor client the ingestor needs
type VendorAPI interface {
	OptionsSnapshot(ctx context.Context, underlying string, limit int, extra url.Values) (*massive.SnapshotResponse, error)
	FollowSnapshotNext(ctx context.Context, nextURL string) (*massive.SnapshotResponse, error)
	MarketStatus(ctx context.Context) string
}

// Publisher receives every flow the ingestor accepts
type Publisher interface {
	Publish(f *flow.Flow)
}

// Ingestor feeds the trade store from the live stream and REST backfill
type Ingestor struct {
	vendor   VendorAPI
	enricher *enrich.Enricher
	store    *flow.Store
	pub      Publisher
	cfg      config.IngestConfig
	log      *logger.Logger
}

// NewIngestor creates an ingestor. pub may be nil when nothing listens.
func NewIngestor(vendor VendorAPI, enricher *enrich.Enricher, store *flow.Store, pub Publisher, cfg config.IngestConfig) *Ingestor {
	return &Ingestor{
		vendor:   vendor,
		enricher: enricher,
		store:    store,
		pub:      pub,
		cfg:      cfg,
		log:      logger.Get().With("component", "ingestor"),
	}
}

// HotTickers returns the configured hot-ticker set, uppercased
func (i *Ingestor) HotTickers() []string {
	var out []string
	for _, t := range i.cfg.HotTickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// HandleTick processes one live stream trade. Ticks arriving while the
// market is closed are dropped.
func (i *Ingestor) HandleTick(ctx context.Context, tick massive.TradeTick) {
	if i.vendor.MarketStatus(ctx) != "open" {
		metrics.RecordIngestDiscard("market_closed")
		return
	}

	f, err := i.enricher.EnrichTick(ctx, tick, i.cfg.StreamMinPremium)
	if err != nil {
		// discard reasons are already counted by the enricher
		return
	}

	i.accept(f)
}

// FetchTickerFlows pulls a ticker-scoped snapshot batch directly from the
// vendor, for queries on tickers the store has not buffered
func (i *Ingestor) FetchTickerFlows(ctx context.Context, ticker string, max int) ([]flow.Flow, error) {
	ps := i.pageSize()
	snapshots, err := i.fetchSnapshots(ctx, ticker, (max+ps-1)/ps)
	if err != nil {
		return nil, err
	}
	if len(snapshots) > max {
		snapshots = snapshots[:max]
	}

	flows := make([]flow.Flow, 0, len(snapshots))
	for idx := range snapshots {
		f, err := i.enricher.EnrichSnapshot(ctx, &snapshots[idx], ticker, i.cfg.BackfillMinPremium)
		if err != nil {
			continue
		}
		i.accept(f)
		flows = append(flows, *f)
	}
	return flows, nil
}

// fetchSnapshots pages through the snapshot endpoint for one ticker.
// A rate-limited page is retried once after a pause; a credential error
// aborts the ticker.
func (i *Ingestor) fetchSnapshots(ctx context.Context, ticker string, pageBudget int) ([]massive.OptionSnapshot, error) {
	var out []massive.OptionSnapshot

	resp, err := i.fetchPage(ctx, func() (*massive.SnapshotResponse, error) {
		return i.vendor.OptionsSnapshot(ctx, ticker, i.pageSize(), nil)
	})
	if err != nil {
		return nil, err
	}
	out = append(out, resp.Results...)

	for page := 1; page < pageBudget && resp.NextURL != ""; page++ {
		next := resp.NextURL
		resp, err = i.fetchPage(ctx, func() (*massive.SnapshotResponse, error) {
			return i.vendor.FollowSnapshotNext(ctx, next)
		})
		if err != nil {
			// keep what earlier pages produced
			i.log.Warnw("Snapshot pagination aborted", "ticker", ticker, "page", page, "error", err)
			break
		}
		out = append(out, resp.Results...)
	}
	return out, nil
}

// fetchPage issues one page fetch, retrying once after rateLimitPause on
// a 429
func (i *Ingestor) fetchPage(ctx context.Context, fetch func() (*massive.SnapshotResponse, error)) (*massive.SnapshotResponse, error) {
	resp, err := fetch()
	if err == nil {
		return resp, nil
	}
	if !errors.Is(err, errors.ErrVendorRateLimited) {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-sleepAfter(rateLimitPause):
	}
	return fetch()
}

// pageSize returns the configured snapshot page size, clamped to the
// vendor ceiling
func (i *Ingestor) pageSize() int {
	if i.cfg.BackfillPageSize > 0 && i.cfg.BackfillPageSize < massive.MaxPageSize {
		return i.cfg.BackfillPageSize
	}
	return massive.MaxPageSize
}

// accept inserts a flow and fans it out
func (i *Ingestor) accept(f *flow.Flow) {
	i.store.Insert(*f)
	if i.pub != nil {
		i.pub.Publish(f)
	}
}
