package extraction

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// PaidAPIExtractor fetches rendered HTML from a paid scraping API and reads
// it with the platform selector set. It is the last resort of the chain.
type PaidAPIExtractor struct {
	config     PaidAPIConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPaidAPIExtractor creates a new PaidAPIExtractor
func NewPaidAPIExtractor(config PaidAPIConfig, logger *zap.Logger) (*PaidAPIExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaidAPIExtractor{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.Named("paid_api"),
	}, nil
}

// SetHTTPClient replaces the HTTP client
func (e *PaidAPIExtractor) SetHTTPClient(hc *http.Client) {
	e.httpClient = hc
}

// Name implements sourcing.Extractor
func (e *PaidAPIExtractor) Name() string {
	return StagePaidAPI
}

// Extract implements sourcing.Extractor
func (e *PaidAPIExtractor) Extract(ctx context.Context, target sourcing.Target) (*sourcing.RawExtraction, error) {
	q := url.Values{}
	q.Set("api_key", e.config.APIKey)
	q.Set("url", target.URL)
	q.Set("render", "true")
	q.Set("premium", "true")
	q.Set("country_code", e.config.CountryCode)

	html, err := getHTML(ctx, e.httpClient, "paid_api", e.config.BaseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	raw, err := ParseWithSelectors(html, target.URL, SelectorsFor(target.Platform), sourcing.MaxDraftImages)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Paid API page parsed",
		zap.String("url", target.URL),
		zap.Bool("has_name", raw.Name != ""),
		zap.Int("images", len(raw.Images)),
	)
	return raw, nil
}

var _ sourcing.Extractor = (*PaidAPIExtractor)(nil)
