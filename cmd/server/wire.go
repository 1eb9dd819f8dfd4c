package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appsourcing "github.com/sourcing/backend/internal/application/sourcing"
	"github.com/sourcing/backend/internal/domain/sourcing"
	"github.com/sourcing/backend/internal/infrastructure/aliexpress"
	"github.com/sourcing/backend/internal/infrastructure/cache"
	"github.com/sourcing/backend/internal/infrastructure/config"
	"github.com/sourcing/backend/internal/infrastructure/extraction"
	"github.com/sourcing/backend/internal/infrastructure/logger"
	"github.com/sourcing/backend/internal/infrastructure/persistence"
	"github.com/sourcing/backend/internal/infrastructure/persistence/models"
	"github.com/sourcing/backend/internal/infrastructure/telemetry"
	"github.com/sourcing/backend/internal/interfaces/http/handler"
	"github.com/sourcing/backend/internal/interfaces/http/router"
)

const meterName = "github.com/sourcing/backend"

// application owns the long-lived resources of the server
type application struct {
	engine  *gin.Engine
	closers []func()
	log     *zap.Logger
}

// Close releases resources in reverse order of acquisition
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *application) onClose(name string, fn func() error) {
	a.closers = append(a.closers, func() {
		if err := fn(); err != nil {
			a.log.Error("Error closing resource", zap.String("resource", name), zap.Error(err))
		}
	})
}

func newApp(ctx context.Context, cfg *config.Config, providers *telemetry.Providers, log *zap.Logger) (_ *application, err error) {
	a := &application{log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var checks []handler.DependencyCheck

	var db *persistence.Database
	if cfg.Sourcing.CredentialStore == "database" {
		db, err = openDatabase(cfg, log)
		if err != nil {
			return nil, err
		}
		a.onClose("database", db.Close)
		checks = append(checks, handler.DependencyCheck{
			Name:  "database",
			Check: func(context.Context) error { return db.Ping() },
		})
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
		a.onClose("redis", redisClient.Close)
		checks = append(checks, handler.DependencyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	var repo sourcing.CredentialRepository
	switch cfg.Sourcing.CredentialStore {
	case "redis":
		repo = cache.NewRedisCredentialRepository(redisClient)
	case "memory":
		log.Warn("Platform credentials are kept in memory and lost on restart")
		repo = persistence.NewInMemoryCredentialRepository()
	default:
		repo = persistence.NewGormCredentialRepository(db.DB)
	}

	meter := providers.Meter.Meter(meterName)
	metrics, err := telemetry.NewSourcingMetrics(telemetry.SourcingMetricsConfig{Meter: meter, Logger: log})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sourcing metrics: %w", err)
	}

	platform := aliExpressConfig(cfg.Platform.AliExpress)
	oauth, err := aliexpress.NewOAuthClient(platform, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oauth client: %w", err)
	}
	credentials, err := appsourcing.NewCredentialService(repo, oauth, appsourcing.CredentialServiceConfig{
		StateSecret: cfg.Platform.AliExpress.StateSecret,
		Issuer:      cfg.App.Name,
	}, metrics, log)
	if err != nil {
		return nil, err
	}
	client, err := aliexpress.NewClient(platform, credentials, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize platform client: %w", err)
	}

	var feeds appsourcing.FeedFetcher = client
	if cfg.Sourcing.FeedCacheEnabled {
		store, release := cache.NewFeedStore(redisClient, log)
		a.onClose("feed store", release)
		feeds = cache.NewFeedCache(client, store, cfg.Sourcing.FeedCacheTTL, log)
	}

	stages, err := extractionStages(cfg.Extraction, log)
	if err != nil {
		return nil, err
	}

	policy, err := pricingPolicy(cfg.Pricing)
	if err != nil {
		return nil, err
	}
	normalizer := sourcing.NewNormalizer(policy)

	chain, err := appsourcing.NewFallbackChain(normalizer, metrics, log, stages...)
	if err != nil {
		return nil, err
	}
	ranker := appsourcing.NewRanker(sourcing.DefaultScoringPolicy(), normalizer)
	aggregator := appsourcing.NewFeedAggregator(feeds, metrics, log)
	search := appsourcing.NewSearchService(aggregator, ranker, cfg.Sourcing.OverfetchFactor, metrics, log)
	imports := appsourcing.NewImportService(client, aliexpress.ExtractExternalID, chain, normalizer, metrics, log,
		appsourcing.WithImportTimeout(cfg.Sourcing.ImportTimeout))

	engineCfg := router.EngineConfig{
		HTTP:           cfg.HTTP,
		TracingEnabled: cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
	}
	if providers.Meter.IsEnabled() {
		engineCfg.Meter = meter
	}
	engine, cleanup := router.NewEngine(engineCfg, router.Handlers{
		Sourcing: handler.NewSourcingHandler(search, imports),
		OAuth:    handler.NewOAuthHandler(credentials),
		Health:   handler.NewHealthHandler(checks...),
	}, log)
	a.closers = append(a.closers, cleanup)
	a.engine = engine

	log.Info("Sourcing pipeline ready",
		zap.String("credential_store", cfg.Sourcing.CredentialStore),
		zap.Int("extraction_stages", len(stages)),
		zap.Bool("feed_cache", cfg.Sourcing.FeedCacheEnabled),
	)
	return a, nil
}

func openDatabase(cfg *config.Config, log *zap.Logger) (*persistence.Database, error) {
	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithIgnoreRecordNotFoundError(true),
	)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogger)
	if err != nil {
		return nil, err
	}

	dbSystem := "postgresql"
	if db.Driver() == persistence.DriverSQLite {
		dbSystem = "sqlite"
	}
	plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log)
	if err := plugin.RegisterOtelGorm(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}

	// PostgreSQL schemas are owned by cmd/migrate; SQLite is for local runs
	if db.Driver() == persistence.DriverSQLite {
		if err := db.DB.AutoMigrate(&models.CredentialModel{}); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
	}

	log.Info("Database connected", zap.String("driver", db.Driver()))
	return db, nil
}

func aliExpressConfig(c config.AliExpressConfig) *aliexpress.Config {
	cfg := aliexpress.NewConfig(c.AppKey, c.AppSecret, c.RedirectURI)
	if c.APIBaseURL != "" {
		cfg.APIBaseURL = c.APIBaseURL
	}
	if c.AuthorizeURL != "" {
		cfg.AuthorizeURL = c.AuthorizeURL
	}
	if c.TokenURL != "" {
		cfg.TokenURL = c.TokenURL
	}
	if c.TargetCurrency != "" {
		cfg.TargetCurrency = c.TargetCurrency
	}
	if c.TargetLanguage != "" {
		cfg.TargetLanguage = c.TargetLanguage
	}
	if c.ShipToCountry != "" {
		cfg.ShipToCountry = c.ShipToCountry
	}
	if c.TimeoutSeconds > 0 {
		cfg.TimeoutSeconds = c.TimeoutSeconds
	}
	if c.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = c.RequestsPerSecond
	}
	if c.Burst > 0 {
		cfg.Burst = c.Burst
	}
	return cfg
}

// extractionStages builds the enabled page retrieval stages in fallback order
func extractionStages(c config.ExtractionConfig, log *zap.Logger) ([]sourcing.Extractor, error) {
	var stages []sourcing.Extractor

	if c.RenderProxy.Enabled() {
		rp, err := extraction.NewRenderProxyExtractor(extraction.RenderProxyConfig{
			BaseURL:     c.RenderProxy.BaseURL,
			APIKey:      c.RenderProxy.APIKey,
			WaitMillis:  c.RenderProxy.WaitMillis,
			CountryCode: c.RenderProxy.CountryCode,
			MaxAttempts: c.RenderProxy.MaxAttempts,
			BaseDelay:   c.RenderProxy.BaseDelay,
			Timeout:     c.RenderProxy.Timeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("render proxy stage: %w", err)
		}
		stages = append(stages, rp)
	}

	if c.Headless.Enabled {
		hl, err := extraction.NewHeadlessExtractor(extraction.HeadlessConfig{
			RemoteURL: c.Headless.RemoteURL,
			NoSandbox: c.Headless.NoSandbox,
			Timeout:   c.Headless.Timeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("headless stage: %w", err)
		}
		stages = append(stages, hl)
	}

	if c.PaidAPI.Enabled() {
		pa, err := extraction.NewPaidAPIExtractor(extraction.PaidAPIConfig{
			BaseURL:     c.PaidAPI.BaseURL,
			APIKey:      c.PaidAPI.APIKey,
			CountryCode: c.PaidAPI.CountryCode,
			Timeout:     c.PaidAPI.Timeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("paid api stage: %w", err)
		}
		stages = append(stages, pa)
	}

	return stages, nil
}

// pricingPolicy parses the decimal strings of the pricing section over the
// normalizer defaults. Empty values keep the default.
func pricingPolicy(c config.PricingConfig) (sourcing.PricingPolicy, error) {
	policy := sourcing.DefaultPricingPolicy()
	if c.SourceCurrency != "" {
		policy.SourceCurrency = c.SourceCurrency
	}
	if c.TargetCurrency != "" {
		policy.TargetCurrency = c.TargetCurrency
	}
	if c.DefaultStock > 0 {
		policy.DefaultStock = c.DefaultStock
	}

	fields := []struct {
		name  string
		value string
		set   func(decimal.Decimal)
	}{
		{"pricing.exchange_rate", c.ExchangeRate, func(d decimal.Decimal) { policy.ExchangeRate = d }},
		{"pricing.default_aliexpress", c.DefaultAliExpress, func(d decimal.Decimal) {
			policy.DefaultPrices[sourcing.PlatformAliExpress] = d
		}},
		{"pricing.default_amazon", c.DefaultAmazon, func(d decimal.Decimal) {
			policy.DefaultPrices[sourcing.PlatformAmazon] = d
		}},
		{"pricing.default_fallback", c.DefaultFallback, func(d decimal.Decimal) { policy.FallbackPrice = d }},
		{"pricing.original_price_markup", c.OriginalPriceMarkup, func(d decimal.Decimal) { policy.OriginalPriceMarkup = d }},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		d, err := decimal.NewFromString(f.value)
		if err != nil {
			return sourcing.PricingPolicy{}, fmt.Errorf("%s: %w", f.name, err)
		}
		f.set(d)
	}
	return policy, nil
}
