package aliexpress

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
)

// Config holds configuration for the AliExpress open platform
type Config struct {
	// AppKey is the application key from the open platform console
	AppKey string
	// AppSecret is the application secret used for signing and token exchange
	AppSecret string
	// RedirectURI is the OAuth callback registered for the application
	RedirectURI string
	// APIBaseURL is the signed RPC endpoint
	APIBaseURL string
	// AuthorizeURL is the OAuth consent page
	AuthorizeURL string
	// TokenURL is the token create/refresh endpoint
	TokenURL string
	// TargetCurrency and TargetLanguage are passed to product and feed calls
	TargetCurrency string
	TargetLanguage string
	// ShipToCountry scopes prices and availability
	ShipToCountry string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// RequestsPerSecond limits outbound API calls; Burst is the bucket size
	RequestsPerSecond float64
	Burst             int
}

const (
	// ProductionAPIURL is the production RPC endpoint
	ProductionAPIURL = "https://api-sg.aliexpress.com/sync"
	// ProductionAuthorizeURL is the OAuth consent page
	ProductionAuthorizeURL = "https://api-sg.aliexpress.com/oauth/authorize"
	// ProductionTokenURL is the token endpoint
	ProductionTokenURL = "https://api-sg.aliexpress.com/rest/auth/token/create"

	// MaxFeedPageSize is the largest page the feed endpoint accepts
	MaxFeedPageSize = 50

	maxResponseSize = 10 * 1024 * 1024
)

// Errors for AliExpress configuration
var (
	ErrConfigMissingAppKey      = errors.New("aliexpress: app key is required")
	ErrConfigMissingAppSecret   = errors.New("aliexpress: app secret is required")
	ErrConfigMissingRedirectURI = errors.New("aliexpress: redirect uri is required")
)

// NewConfig creates a configuration with production endpoints and defaults
func NewConfig(appKey, appSecret, redirectURI string) *Config {
	cfg := &Config{
		AppKey:      appKey,
		AppSecret:   appSecret,
		RedirectURI: redirectURI,
	}
	cfg.applyDefaults()
	return cfg
}

// Validate checks required fields and fills defaults
func (c *Config) Validate() error {
	if c.AppKey == "" {
		return ErrConfigMissingAppKey
	}
	if c.AppSecret == "" {
		return ErrConfigMissingAppSecret
	}
	if c.RedirectURI == "" {
		return ErrConfigMissingRedirectURI
	}
	c.applyDefaults()
	return nil
}

func (c *Config) applyDefaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = ProductionAPIURL
	}
	if c.AuthorizeURL == "" {
		c.AuthorizeURL = ProductionAuthorizeURL
	}
	if c.TokenURL == "" {
		c.TokenURL = ProductionTokenURL
	}
	if c.TargetCurrency == "" {
		c.TargetCurrency = "USD"
	}
	if c.TargetLanguage == "" {
		c.TargetLanguage = "EN"
	}
	if c.ShipToCountry == "" {
		c.ShipToCountry = "US"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
}

// Sign computes the request signature:
// MD5(secret + k1v1 + k2v2 + ... + secret) as uppercase hex, keys sorted,
// empty values and the sign parameter itself excluded.
func (c *Config) Sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == "sign" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(c.AppSecret)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(params[k])
	}
	sb.WriteString(c.AppSecret)

	hash := md5.Sum([]byte(sb.String()))
	return strings.ToUpper(hex.EncodeToString(hash[:]))
}
