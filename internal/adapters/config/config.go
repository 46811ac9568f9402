package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
)

type Config struct {
	App           AppConfig
	Vendor        VendorConfig
	Ingest        IngestConfig
	Store         StoreConfig
	Spot          SpotConfig
	Scanner       ScannerConfig
	Broadcast     BroadcastConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"sweepalgo-backend"`
	Env         string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Port        int    `envconfig:"PORT" default:"5000"`
	FrontendURL string `envconfig:"FRONTEND_URL"`
}

// VendorConfig holds market data vendor credentials and endpoints.
// PolygonAPIKey takes precedence over MassiveAPIKey when both are set.
type VendorConfig struct {
	PolygonAPIKey string `envconfig:"POLYGON_API_KEY"`
	MassiveAPIKey string `envconfig:"MASSIVE_API_KEY"`

	RESTBaseURL string `envconfig:"VENDOR_REST_BASE_URL" default:"https://api.massive.com"`
	WSURL       string `envconfig:"VENDOR_WS_URL" default:"wss://socket.polygon.io/options"`

	// Per-call HTTP deadline applied when the caller carries none
	RequestTimeout time.Duration `envconfig:"VENDOR_REQUEST_TIMEOUT" default:"15s"`
}

// APIKey resolves the effective vendor key
func (c VendorConfig) APIKey() string {
	if c.PolygonAPIKey != "" {
		return c.PolygonAPIKey
	}
	return c.MassiveAPIKey
}

type IngestConfig struct {
	// Tickers backfilled by REST and favored by the scanner
	HotTickers []string `envconfig:"INGEST_HOT_TICKERS" default:"SPY,QQQ,AAPL,TSLA,NVDA,AMD,MSFT,META,AMZN,GOOGL"`

	BackfillInterval time.Duration `envconfig:"INGEST_BACKFILL_INTERVAL" default:"10s"`
	BackfillWarmup   time.Duration `envconfig:"INGEST_BACKFILL_WARMUP" default:"2s"`
	BackfillPageSize int           `envconfig:"INGEST_BACKFILL_PAGE_SIZE" default:"100"`

	// Minimum premium (USD) below which trades are discarded
	StreamMinPremium   float64 `envconfig:"INGEST_STREAM_MIN_PREMIUM" default:"10000"`
	BackfillMinPremium float64 `envconfig:"INGEST_BACKFILL_MIN_PREMIUM" default:"0"`
}

type StoreConfig struct {
	MaxTrades int           `envconfig:"STORE_MAX_TRADES" default:"100000"`
	MaxAge    time.Duration `envconfig:"STORE_MAX_AGE" default:"120s"`
}

type SpotConfig struct {
	CacheTTL time.Duration `envconfig:"SPOT_CACHE_TTL" default:"300s"`
	// Minimum spacing between vendor spot lookups, shared across callers
	FetchInterval time.Duration `envconfig:"SPOT_FETCH_INTERVAL" default:"200ms"`
}

type ScannerConfig struct {
	MaxResults int     `envconfig:"SCANNER_MAX_RESULTS" default:"500"`
	MinScore   float64 `envconfig:"SCANNER_MIN_SCORE" default:"7.0"`
}

type BroadcastConfig struct {
	// Per-client outbound buffer; frames are dropped when full
	SendBuffer int `envconfig:"BROADCAST_SEND_BUFFER" default:"256"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
