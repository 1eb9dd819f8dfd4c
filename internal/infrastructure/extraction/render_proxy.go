package extraction

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// RenderProxyExtractor fetches the page through a JavaScript-rendering proxy
// with premium residential routing, then parses its structured markup.
type RenderProxyExtractor struct {
	config     RenderProxyConfig
	httpClient *http.Client
	sleep      sleepFunc
	logger     *zap.Logger
}

// NewRenderProxyExtractor creates a new RenderProxyExtractor
func NewRenderProxyExtractor(config RenderProxyConfig, logger *zap.Logger) (*RenderProxyExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderProxyExtractor{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		sleep:      sleepContext,
		logger:     logger.Named("render_proxy"),
	}, nil
}

// SetHTTPClient replaces the HTTP client
func (e *RenderProxyExtractor) SetHTTPClient(hc *http.Client) {
	e.httpClient = hc
}

// Name implements sourcing.Extractor
func (e *RenderProxyExtractor) Name() string {
	return StageStructuredParse
}

// Extract implements sourcing.Extractor. Rate limiting, server errors and
// connection failures are retried with exponential backoff; other client
// errors are returned immediately.
func (e *RenderProxyExtractor) Extract(ctx context.Context, target sourcing.Target) (*sourcing.RawExtraction, error) {
	q := url.Values{}
	q.Set("api_key", e.config.APIKey)
	q.Set("url", target.URL)
	q.Set("render_js", "true")
	q.Set("premium_proxy", "true")
	q.Set("wait", strconv.Itoa(e.config.WaitMillis))
	q.Set("country_code", e.config.CountryCode)
	endpoint := e.config.BaseURL + "?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt < e.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := e.config.BaseDelay << (attempt - 1)
			e.logger.Debug("Retrying render proxy",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := e.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		html, err := getHTML(ctx, e.httpClient, "render_proxy", endpoint)
		if err == nil {
			return ParseStructured(html, target.URL, e.config.MaxImages)
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var te *sourcing.TransportError
		if !errors.As(err, &te) || !te.Retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

// SetSleep replaces the backoff wait, used by tests
func (e *RenderProxyExtractor) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	e.sleep = fn
}

var _ sourcing.Extractor = (*RenderProxyExtractor)(nil)
