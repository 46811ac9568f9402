package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/config"
	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/massive"
	"github.com/AliyanOranje/sweepalgo-backend/internal/metrics"
	"github.com/AliyanOranje/sweepalgo-backend/internal/workers"
)

const (
	// rateLimitPause is the wait before retrying a rate-limited page
	rateLimitPause = 2 * time.Second

	// syncBatch is how many snapshots a run processes before handing the
	// remainder to a background goroutine
	syncBatch = 500

	// page budgets per ticker per run
	pageBudgetDefault = 5
	pageBudgetLarge   = 10

	// store-occupancy thresholds driving the age sweep and page budget
	sweepThreshold = 0.5
	largeThreshold = 0.8
)

// sleepAfter is swapped out in tests
var sleepAfter = time.After

// BackfillWorker periodically refreshes the store from the vendor's REST
// snapshot endpoint. The live stream misses trades during reconnects and
// carries no session aggregates; backfill fills both gaps.
type BackfillWorker struct {
	*workers.BaseWorker
	ing      *Ingestor
	maxAge   time.Duration
	warmup   time.Duration
	warmed   atomic.Bool
	inFlight atomic.Bool
}

// NewBackfillWorker creates the backfill worker
func NewBackfillWorker(ing *Ingestor, cfg config.IngestConfig, storeCfg config.StoreConfig) *BackfillWorker {
	return &BackfillWorker{
		BaseWorker: workers.NewBaseWorker("options_backfill", cfg.BackfillInterval, true),
		ing:        ing,
		maxAge:     storeCfg.MaxAge,
		warmup:     cfg.BackfillWarmup,
	}
}

// Run executes one backfill pass over the hot-ticker set
func (w *BackfillWorker) Run(ctx context.Context) error {
	if w.warmed.CompareAndSwap(false, true) && w.warmup > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sleepAfter(w.warmup):
		}
	}

	if !w.inFlight.CompareAndSwap(false, true) {
		w.Log().Debugw("Backfill already in flight, skipping run")
		metrics.BackfillRuns.WithLabelValues("skipped").Inc()
		return nil
	}
	defer w.inFlight.Store(false)

	start := time.Now()
	w.sweep(sweepThreshold)

	budget := pageBudgetDefault
	if w.occupancy() > sweepThreshold {
		budget = pageBudgetLarge
	}

	var accepted, fetched int
	for _, ticker := range w.ing.HotTickers() {
		if ctx.Err() != nil {
			break
		}

		snaps, err := w.ing.fetchSnapshots(ctx, ticker, budget)
		if err != nil {
			w.Log().Warnw("Backfill fetch failed", "ticker", ticker, "error", err)
			continue
		}
		fetched += len(snaps)
		accepted += w.process(ctx, ticker, snaps)
	}

	metrics.BackfillRuns.WithLabelValues("success").Inc()
	metrics.StoreSize.Set(float64(w.ing.store.Len()))
	w.RecordRun(time.Since(start))

	w.Log().Infow("Backfill pass complete",
		"fetched", humanize.Comma(int64(fetched)),
		"accepted", humanize.Comma(int64(accepted)),
		"store_size", humanize.Comma(int64(w.ing.store.Len())),
		"duration", time.Since(start),
	)
	return nil
}

// process enriches and inserts a ticker's snapshots. The first batch is
// handled inline; the remainder continues in the background so the run
// finishes promptly.
func (w *BackfillWorker) process(ctx context.Context, ticker string, snaps []massive.OptionSnapshot) int {
	head := snaps
	if len(head) > syncBatch {
		head = snaps[:syncBatch]
		tail := snaps[syncBatch:]
		go func() {
			n := w.ingestBatch(ctx, ticker, tail)
			w.Log().Debugw("Async backfill batch done", "ticker", ticker, "accepted", n)
		}()
	}
	return w.ingestBatch(ctx, ticker, head)
}

func (w *BackfillWorker) ingestBatch(ctx context.Context, ticker string, snaps []massive.OptionSnapshot) int {
	accepted := 0
	for idx := range snaps {
		if ctx.Err() != nil {
			return accepted
		}
		f, err := w.ing.enricher.EnrichSnapshot(ctx, &snaps[idx], ticker, w.ing.cfg.BackfillMinPremium)
		if err != nil {
			continue
		}
		w.ing.accept(f)
		accepted++
		metrics.IngestTicks.WithLabelValues("backfill").Inc()
	}
	return accepted
}

// Refresh runs one user-triggered pass in the background. It applies the
// stricter sweep threshold and returns immediately.
func (w *BackfillWorker) Refresh() {
	go func() {
		w.sweep(largeThreshold)
		if err := w.Run(context.Background()); err != nil {
			w.Log().Warnw("Manual refresh failed", "error", err)
		}
	}()
}

// sweep evicts stale entries once occupancy passes the given threshold
func (w *BackfillWorker) sweep(threshold float64) {
	if w.occupancy() <= threshold {
		return
	}

	removed := w.ing.store.AgeSweep(w.maxAge, time.Now())
	if removed > 0 {
		metrics.StoreEvictions.WithLabelValues("age").Add(float64(removed))
		w.Log().Infow("Age sweep evicted stale flows", "removed", removed)
	}
}

func (w *BackfillWorker) occupancy() float64 {
	return float64(w.ing.store.Len()) / float64(w.ing.store.Cap())
}
