package bootstrap

import (
	"context"

	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/config"
	"github.com/AliyanOranje/sweepalgo-backend/internal/adapters/massive"
	"github.com/AliyanOranje/sweepalgo-backend/internal/api"
	"github.com/AliyanOranje/sweepalgo-backend/internal/api/health"
	"github.com/AliyanOranje/sweepalgo-backend/internal/broadcast"
	"github.com/AliyanOranje/sweepalgo-backend/internal/domain/flow"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/enrich"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/gex"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/ingest"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/query"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/scanner"
	"github.com/AliyanOranje/sweepalgo-backend/internal/services/spot"
	"github.com/AliyanOranje/sweepalgo-backend/internal/workers"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Vendor adapters
	Vendor *massive.Client
	Stream *massive.Stream

	// Data plane
	Store    *flow.Store
	Oracle   *spot.Oracle
	Enricher *enrich.Enricher
	Hub      *broadcast.Hub
	Ingestor *ingest.Ingestor
	Backfill *ingest.BackfillWorker

	// Read side
	QueryEngine *query.Engine
	GexEngine   *gex.Engine
	Scanner     *scanner.Scanner

	// Application layer
	Scheduler *workers.Scheduler
	Server    *api.Server
}

// New wires every component in dependency order. Nothing is started yet;
// Run owns the lifecycle.
func New(cfg *config.Config, log *logger.Logger, tracker errors.Tracker) *Container {
	c := &Container{
		Config:       cfg,
		Log:          log,
		ErrorTracker: tracker,
	}

	c.Vendor = massive.NewClient(cfg.Vendor.APIKey(), cfg.Vendor.RESTBaseURL, cfg.Vendor.RequestTimeout, log)

	c.Store = flow.NewStore(cfg.Store.MaxTrades)
	c.Oracle = spot.NewOracle(c.Vendor, cfg.Spot.CacheTTL, cfg.Spot.FetchInterval, log)
	c.Enricher = enrich.NewEnricher(c.Oracle, log)
	c.Hub = broadcast.NewHub(cfg.Broadcast.SendBuffer, log)

	c.Ingestor = ingest.NewIngestor(c.Vendor, c.Enricher, c.Store, c.Hub, cfg.Ingest)
	c.Backfill = ingest.NewBackfillWorker(c.Ingestor, cfg.Ingest, cfg.Store)

	c.Stream = massive.NewStream(
		cfg.Vendor.WSURL,
		cfg.Vendor.APIKey(),
		c.Ingestor.HotTickers(),
		func(tick massive.TradeTick) {
			// a hung vendor lookup must not wedge the stream read loop
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Vendor.RequestTimeout)
			defer cancel()
			c.Ingestor.HandleTick(ctx, tick)
		},
		log,
	)

	c.QueryEngine = query.NewEngine(c.Store, c.Ingestor, c.Vendor.MarketStatus, log)
	c.GexEngine = gex.NewEngine(c.Vendor, log)
	c.Scanner = scanner.NewScanner(c.Vendor, c.Enricher, c.GexEngine, log)

	c.Scheduler = workers.NewScheduler()
	c.Scheduler.RegisterWorker(c.Backfill)

	handler := api.NewHandler(api.HandlerDeps{
		Store:     c.Store,
		Flows:     c.QueryEngine,
		Refresher: c.Backfill,
		Gex:       c.GexEngine,
		Scanner:   c.Scanner,
		Vendor:    c.Vendor,
		Watchlist: c.Ingestor.HotTickers(),
		ScanCfg:   cfg.Scanner,
	}, log)

	healthHandler := health.New(log, cfg.App.Name, Version,
		health.Check{Name: "vendor_stream", Probe: c.streamProbe},
		health.Check{Name: "trade_store", Probe: c.storeProbe},
	)

	c.Server = api.NewServer(api.ServerConfig{
		Port:        cfg.App.Port,
		ServiceName: cfg.App.Name,
		Version:     Version,
		Env:         cfg.App.Env,
		FrontendURL: cfg.App.FrontendURL,
	}, handler, healthHandler, c.Hub.HandleWS, log)

	return c
}

// streamProbe reports readiness of the vendor WebSocket session
func (c *Container) streamProbe(context.Context) error {
	st := c.Stream.State()
	if st != massive.StateStreaming && st != massive.StateSubscribed {
		return errors.Wrapf(errors.ErrWSNotConnected, "stream state %s", st)
	}
	return nil
}

// storeProbe reports readiness of the trade store
func (c *Container) storeProbe(context.Context) error {
	if c.Store == nil || c.Store.Cap() <= 0 {
		return errors.New("trade store not initialized")
	}
	return nil
}
