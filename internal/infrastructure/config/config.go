package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Telemetry  TelemetryConfig
	Platform   PlatformConfig
	Extraction ExtractionConfig
	Pricing    PricingConfig
	Sourcing   SourcingConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file path
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	LogsEnabled       bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

// PlatformConfig holds source platform credentials
type PlatformConfig struct {
	AliExpress AliExpressConfig
}

// AliExpressConfig holds the AliExpress open platform application settings
type AliExpressConfig struct {
	AppKey            string
	AppSecret         string
	RedirectURI       string
	StateSecret       string // signs the OAuth state parameter
	APIBaseURL        string
	AuthorizeURL      string
	TokenURL          string
	TargetCurrency    string
	TargetLanguage    string
	ShipToCountry     string
	TimeoutSeconds    int
	RequestsPerSecond float64
	Burst             int
}

// ExtractionConfig holds the fallback page retrieval stages
type ExtractionConfig struct {
	RenderProxy RenderProxyConfig
	Headless    HeadlessConfig
	PaidAPI     PaidAPIConfig
}

// RenderProxyConfig configures the JavaScript-rendering proxy
type RenderProxyConfig struct {
	BaseURL     string
	APIKey      string
	WaitMillis  int
	CountryCode string
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
}

// Enabled reports whether the stage has credentials
func (c *RenderProxyConfig) Enabled() bool {
	return c.APIKey != ""
}

// HeadlessConfig configures the local headless browser
type HeadlessConfig struct {
	Enabled   bool
	RemoteURL string
	NoSandbox bool
	Timeout   time.Duration
}

// PaidAPIConfig configures the paid extraction API
type PaidAPIConfig struct {
	BaseURL     string
	APIKey      string
	CountryCode string
	Timeout     time.Duration
}

// Enabled reports whether the stage has credentials
func (c *PaidAPIConfig) Enabled() bool {
	return c.APIKey != ""
}

// PricingConfig holds currency conversion and default price settings.
// Prices are decimal strings in major units.
type PricingConfig struct {
	SourceCurrency      string
	TargetCurrency      string
	ExchangeRate        string
	DefaultAliExpress   string
	DefaultAmazon       string
	DefaultFallback     string
	OriginalPriceMarkup string
	DefaultStock        int
}

// SourcingConfig holds search and feed settings
type SourcingConfig struct {
	OverfetchFactor  int
	FeedCacheEnabled bool
	FeedCacheTTL     time.Duration
	CredentialStore  string // database, redis, memory
	ImportTimeout    time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SOURCING_ prefix (e.g., SOURCING_PLATFORM_ALIEXPRESS_APP_SECRET)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: readDatabase(v),
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Platform: PlatformConfig{
			AliExpress: AliExpressConfig{
				AppKey:            v.GetString("platform.aliexpress.app_key"),
				AppSecret:         v.GetString("platform.aliexpress.app_secret"),
				RedirectURI:       v.GetString("platform.aliexpress.redirect_uri"),
				StateSecret:       v.GetString("platform.aliexpress.state_secret"),
				APIBaseURL:        v.GetString("platform.aliexpress.api_base_url"),
				AuthorizeURL:      v.GetString("platform.aliexpress.authorize_url"),
				TokenURL:          v.GetString("platform.aliexpress.token_url"),
				TargetCurrency:    v.GetString("platform.aliexpress.target_currency"),
				TargetLanguage:    v.GetString("platform.aliexpress.target_language"),
				ShipToCountry:     v.GetString("platform.aliexpress.ship_to_country"),
				TimeoutSeconds:    v.GetInt("platform.aliexpress.timeout_seconds"),
				RequestsPerSecond: v.GetFloat64("platform.aliexpress.requests_per_second"),
				Burst:             v.GetInt("platform.aliexpress.burst"),
			},
		},
		Extraction: ExtractionConfig{
			RenderProxy: RenderProxyConfig{
				BaseURL:     v.GetString("extraction.render_proxy.base_url"),
				APIKey:      v.GetString("extraction.render_proxy.api_key"),
				WaitMillis:  v.GetInt("extraction.render_proxy.wait_millis"),
				CountryCode: v.GetString("extraction.render_proxy.country_code"),
				MaxAttempts: v.GetInt("extraction.render_proxy.max_attempts"),
				BaseDelay:   v.GetDuration("extraction.render_proxy.base_delay"),
				Timeout:     v.GetDuration("extraction.render_proxy.timeout"),
			},
			Headless: HeadlessConfig{
				Enabled:   v.GetBool("extraction.headless.enabled"),
				RemoteURL: v.GetString("extraction.headless.remote_url"),
				NoSandbox: v.GetBool("extraction.headless.no_sandbox"),
				Timeout:   v.GetDuration("extraction.headless.timeout"),
			},
			PaidAPI: PaidAPIConfig{
				BaseURL:     v.GetString("extraction.paid_api.base_url"),
				APIKey:      v.GetString("extraction.paid_api.api_key"),
				CountryCode: v.GetString("extraction.paid_api.country_code"),
				Timeout:     v.GetDuration("extraction.paid_api.timeout"),
			},
		},
		Pricing: PricingConfig{
			SourceCurrency:      v.GetString("pricing.source_currency"),
			TargetCurrency:      v.GetString("pricing.target_currency"),
			ExchangeRate:        v.GetString("pricing.exchange_rate"),
			DefaultAliExpress:   v.GetString("pricing.default_aliexpress"),
			DefaultAmazon:       v.GetString("pricing.default_amazon"),
			DefaultFallback:     v.GetString("pricing.default_fallback"),
			OriginalPriceMarkup: v.GetString("pricing.original_price_markup"),
			DefaultStock:        v.GetInt("pricing.default_stock"),
		},
		Sourcing: SourcingConfig{
			OverfetchFactor:  v.GetInt("sourcing.overfetch_factor"),
			FeedCacheEnabled: v.GetBool("sourcing.feed_cache_enabled"),
			FeedCacheTTL:     v.GetDuration("sourcing.feed_cache_ttl"),
			CredentialStore:  v.GetString("sourcing.credential_store"),
			ImportTimeout:    v.GetDuration("sourcing.import_timeout"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabase reads only the database section. The migration CLI uses it so
// that schema changes do not require platform secrets.
func LoadDatabase() (*DatabaseConfig, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	cfg := &Config{Database: readDatabase(v)}
	applyDefaults(cfg)
	if err := cfg.Database.validate(); err != nil {
		return nil, err
	}
	return &cfg.Database, nil
}

func newViper() (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SOURCING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func readDatabase(v *viper.Viper) DatabaseConfig {
	return DatabaseConfig{
		Driver:          v.GetString("database.driver"),
		Host:            v.GetString("database.host"),
		Port:            v.GetInt("database.port"),
		User:            v.GetString("database.user"),
		Password:        v.GetString("database.password"),
		DBName:          v.GetString("database.dbname"),
		SSLMode:         v.GetString("database.sslmode"),
		Path:            v.GetString("database.path"),
		MaxOpenConns:    v.GetInt("database.max_open_conns"),
		MaxIdleConns:    v.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "sourcing-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "sourcing"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "sourcing.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// imports may run the whole fallback chain inside one request
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 3 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 60
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// No default CORS origins: cross-origin requests stay blocked until configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "sourcing-backend"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}

	ae := &cfg.Platform.AliExpress
	if ae.TimeoutSeconds == 0 {
		ae.TimeoutSeconds = 30
	}
	if ae.RequestsPerSecond == 0 {
		ae.RequestsPerSecond = 5
	}
	if ae.Burst == 0 {
		ae.Burst = 10
	}

	rp := &cfg.Extraction.RenderProxy
	if rp.BaseURL == "" {
		rp.BaseURL = "https://app.scrapingbee.com/api/v1/"
	}
	if rp.WaitMillis == 0 {
		rp.WaitMillis = 3000
	}
	if rp.CountryCode == "" {
		rp.CountryCode = "us"
	}
	if rp.MaxAttempts == 0 {
		rp.MaxAttempts = 3
	}
	if rp.BaseDelay == 0 {
		rp.BaseDelay = time.Second
	}
	if rp.Timeout == 0 {
		rp.Timeout = 60 * time.Second
	}
	if cfg.Extraction.Headless.Timeout == 0 {
		cfg.Extraction.Headless.Timeout = 45 * time.Second
	}
	pa := &cfg.Extraction.PaidAPI
	if pa.BaseURL == "" {
		pa.BaseURL = "https://api.scraperapi.com/"
	}
	if pa.CountryCode == "" {
		pa.CountryCode = "us"
	}
	if pa.Timeout == 0 {
		pa.Timeout = 70 * time.Second
	}

	p := &cfg.Pricing
	if p.SourceCurrency == "" {
		p.SourceCurrency = "USD"
	}
	if p.TargetCurrency == "" {
		p.TargetCurrency = "USD"
	}
	if p.ExchangeRate == "" {
		p.ExchangeRate = "1"
	}
	if p.DefaultAliExpress == "" {
		p.DefaultAliExpress = "19.99"
	}
	if p.DefaultAmazon == "" {
		p.DefaultAmazon = "29.99"
	}
	if p.DefaultFallback == "" {
		p.DefaultFallback = "24.99"
	}
	if p.OriginalPriceMarkup == "" {
		p.OriginalPriceMarkup = "1.3"
	}
	if p.DefaultStock == 0 {
		p.DefaultStock = 100
	}

	if cfg.Sourcing.OverfetchFactor == 0 {
		cfg.Sourcing.OverfetchFactor = 3
	}
	if cfg.Sourcing.FeedCacheTTL == 0 {
		cfg.Sourcing.FeedCacheTTL = 10 * time.Minute
	}
	if cfg.Sourcing.CredentialStore == "" {
		cfg.Sourcing.CredentialStore = "database"
	}
	if cfg.Sourcing.ImportTimeout == 0 {
		cfg.Sourcing.ImportTimeout = 150 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := c.Database.validate(); err != nil {
		return err
	}

	ae := c.Platform.AliExpress
	if ae.AppKey == "" {
		return fmt.Errorf("platform.aliexpress.app_key is required")
	}
	if ae.AppSecret == "" {
		return fmt.Errorf("platform.aliexpress.app_secret is required")
	}
	if ae.RedirectURI == "" {
		return fmt.Errorf("platform.aliexpress.redirect_uri is required")
	}
	if len(ae.StateSecret) < 16 {
		return fmt.Errorf("platform.aliexpress.state_secret must be at least 16 characters")
	}
	if ae.RequestsPerSecond < 0 {
		return fmt.Errorf("platform.aliexpress.requests_per_second cannot be negative")
	}

	ex := c.Extraction
	if !ex.RenderProxy.Enabled() && !ex.Headless.Enabled && !ex.PaidAPI.Enabled() {
		return fmt.Errorf("at least one extraction stage must be configured " +
			"(extraction.render_proxy.api_key, extraction.headless.enabled or extraction.paid_api.api_key)")
	}

	if err := c.Pricing.validate(); err != nil {
		return err
	}

	if c.Sourcing.OverfetchFactor < 1 {
		return fmt.Errorf("sourcing.overfetch_factor must be at least 1")
	}
	// the import response must be written before the server cuts the connection
	if c.Sourcing.ImportTimeout >= c.HTTP.WriteTimeout {
		return fmt.Errorf("sourcing.import_timeout (%v) must be shorter than http.write_timeout (%v)",
			c.Sourcing.ImportTimeout, c.HTTP.WriteTimeout)
	}
	switch c.Sourcing.CredentialStore {
	case "database", "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("sourcing.credential_store=redis requires redis.enabled=true")
		}
	default:
		return fmt.Errorf("sourcing.credential_store must be 'database', 'redis' or 'memory', got %q", c.Sourcing.CredentialStore)
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		if c.Sourcing.CredentialStore == "memory" {
			return fmt.Errorf("sourcing.credential_store cannot be 'memory' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

func (d *DatabaseConfig) validate() error {
	switch d.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be 'postgres' or 'sqlite', got %q", d.Driver)
	}
	if d.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if d.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if d.MaxIdleConns > d.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			d.MaxIdleConns, d.MaxOpenConns)
	}
	return nil
}

func (p *PricingConfig) validate() error {
	if len(p.SourceCurrency) != 3 || len(p.TargetCurrency) != 3 {
		return fmt.Errorf("pricing currencies must be 3-letter ISO codes")
	}
	fields := map[string]string{
		"pricing.exchange_rate":         p.ExchangeRate,
		"pricing.default_aliexpress":    p.DefaultAliExpress,
		"pricing.default_amazon":        p.DefaultAmazon,
		"pricing.default_fallback":      p.DefaultFallback,
		"pricing.original_price_markup": p.OriginalPriceMarkup,
	}
	for key, raw := range fields {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("%s must be a decimal number: %w", key, err)
		}
		if !d.IsPositive() {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if p.DefaultStock < 0 {
		return fmt.Errorf("pricing.default_stock cannot be negative")
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
