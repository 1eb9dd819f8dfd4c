// Package extraction implements the page retrieval strategies of the import
// fallback chain: a rendering proxy, a local headless browser and a paid
// extraction API. All three return sourcing.RawExtraction parsed with goquery.
package extraction

import (
	"errors"
	"time"
)

// Stage names used in logs and metrics
const (
	StageStructuredParse = "structured_parse"
	StageHeadlessRender  = "headless_render"
	StagePaidAPI         = "paid_api"
)

const (
	defaultHTTPTimeout   = 60 * time.Second
	defaultRenderWait    = 3000
	defaultMaxAttempts   = 3
	defaultBaseDelay     = time.Second
	defaultCountryCode   = "us"
	defaultMaxImages     = 10
	defaultHeadlessWait  = 45 * time.Second
	defaultMinJitter     = 500 * time.Millisecond
	defaultMaxJitter     = 1500 * time.Millisecond
	defaultLanguage      = "en-US,en;q=0.9"
	maxPageSize          = 10 * 1024 * 1024
	maxDescriptionLength = 5000
)

// Configuration errors
var (
	ErrConfigMissingBaseURL = errors.New("extraction: base URL is required")
	ErrConfigMissingAPIKey  = errors.New("extraction: API key is required")
)

// RenderProxyConfig configures the JavaScript-rendering proxy stage
type RenderProxyConfig struct {
	BaseURL     string
	APIKey      string
	WaitMillis  int
	CountryCode string
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
	MaxImages   int
}

// Validate checks required fields and fills defaults
func (c *RenderProxyConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	if c.WaitMillis <= 0 {
		c.WaitMillis = defaultRenderWait
	}
	if c.CountryCode == "" {
		c.CountryCode = defaultCountryCode
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultHTTPTimeout
	}
	if c.MaxImages <= 0 {
		c.MaxImages = defaultMaxImages
	}
	return nil
}

// HeadlessConfig configures the local headless browser stage
type HeadlessConfig struct {
	// RemoteURL points at a running Chrome DevTools endpoint. Empty launches a local browser.
	RemoteURL string
	// NoSandbox is needed when running as root in a container
	NoSandbox      bool
	Timeout        time.Duration
	MinJitter      time.Duration
	MaxJitter      time.Duration
	AcceptLanguage string
	UserAgents     []string
}

// Validate fills defaults
func (c *HeadlessConfig) Validate() error {
	if c.Timeout <= 0 {
		c.Timeout = defaultHeadlessWait
	}
	if c.MinJitter <= 0 {
		c.MinJitter = defaultMinJitter
	}
	if c.MaxJitter < c.MinJitter {
		c.MaxJitter = c.MinJitter + (defaultMaxJitter - defaultMinJitter)
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = defaultLanguage
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = DefaultUserAgents()
	}
	return nil
}

// PaidAPIConfig configures the paid extraction API stage
type PaidAPIConfig struct {
	BaseURL     string
	APIKey      string
	CountryCode string
	Timeout     time.Duration
}

// Validate checks required fields and fills defaults
func (c *PaidAPIConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	if c.CountryCode == "" {
		c.CountryCode = defaultCountryCode
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultHTTPTimeout
	}
	return nil
}
