package sourcing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sourcing/backend/internal/domain/sourcing"
	"github.com/sourcing/backend/internal/infrastructure/telemetry"
)

// Import paths
const (
	ImportPathAPI      = "structured_api"
	ImportPathFallback = "fallback"
)

// aliExpressItemURL is the canonical product page for a bare numeric id
const aliExpressItemURL = "https://www.aliexpress.com/item/%s.html"

// ProductFetcher retrieves one product through the structured API
type ProductFetcher interface {
	FetchProduct(ctx context.Context, externalID string) (*sourcing.SourceListing, error)
}

// IDExtractor pulls the platform's external id out of a product URL
type IDExtractor func(rawURL string) (string, bool)

// ImportResult is a normalized draft and the path that produced it
type ImportResult struct {
	Draft *sourcing.ProductDraft
	Path  string
	Stage string
}

// ImportService turns a product URL or id into a catalog draft
type ImportService struct {
	products   ProductFetcher
	extractID  IDExtractor
	chain      *FallbackChain
	normalizer *sourcing.Normalizer
	metrics    *telemetry.SourcingMetrics
	logger     *zap.Logger
	timeout    time.Duration
}

// ImportOption configures an ImportService
type ImportOption func(*ImportService)

// WithImportTimeout bounds one whole import, API call and every fallback
// stage included. Zero leaves the caller's deadline alone.
func WithImportTimeout(d time.Duration) ImportOption {
	return func(s *ImportService) {
		s.timeout = d
	}
}

// NewImportService creates a new ImportService
func NewImportService(
	products ProductFetcher,
	extractID IDExtractor,
	chain *FallbackChain,
	normalizer *sourcing.Normalizer,
	metrics *telemetry.SourcingMetrics,
	logger *zap.Logger,
	opts ...ImportOption,
) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ImportService{
		products:   products,
		extractID:  extractID,
		chain:      chain,
		normalizer: normalizer,
		metrics:    metrics,
		logger:     logger.Named("import"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Import resolves ref, a product URL or a bare numeric AliExpress id.
// AliExpress references try the structured API first and fall back to page
// extraction; Amazon URLs go straight to page extraction.
func (s *ImportService) Import(ctx context.Context, ref string) (*ImportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "import", "import")
	defer span.End()
	start := time.Now()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	target, err := s.resolve(ref)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPlatform, target.Platform.String(),
		telemetry.SpanAttrExternalID, target.ExternalID,
	)

	result, err := s.importTarget(ctx, target)
	if err != nil {
		s.metrics.RecordImport(ctx, "none", target.Platform.String(), telemetry.OutcomeFailure, time.Since(start))
		telemetry.RecordError(span, err)
		s.logger.Warn("Import failed", zap.String("reference", ref), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", sourcing.ErrImportFailed, err)
	}

	s.metrics.RecordImport(ctx, result.Path, target.Platform.String(), telemetry.OutcomeSuccess, time.Since(start))
	telemetry.SetAttribute(span, telemetry.SpanAttrImportPath, result.Path)
	s.logger.Info("Product imported",
		zap.String("reference", ref),
		zap.String("path", result.Path),
		zap.String("sku", result.Draft.SKU),
	)
	return result, nil
}

func (s *ImportService) importTarget(ctx context.Context, target sourcing.Target) (*ImportResult, error) {
	var apiErr error
	if target.Platform == sourcing.PlatformAliExpress && target.ExternalID != "" && s.products != nil {
		draft, err := s.fromAPI(ctx, target)
		if err == nil {
			return &ImportResult{Draft: draft, Path: ImportPathAPI}, nil
		}
		apiErr = err
		s.logger.Info("Structured API unavailable, using page extraction",
			zap.String("external_id", target.ExternalID),
			zap.Error(err),
		)
	}

	if s.chain == nil {
		if apiErr != nil {
			return nil, apiErr
		}
		return nil, sourcing.ErrExtractionFailed
	}
	fb, err := s.chain.Run(ctx, target)
	if err != nil {
		return nil, err
	}
	return &ImportResult{Draft: fb.Draft, Path: ImportPathFallback, Stage: fb.Stage}, nil
}

func (s *ImportService) fromAPI(ctx context.Context, target sourcing.Target) (*sourcing.ProductDraft, error) {
	listing, err := s.products.FetchProduct(ctx, target.ExternalID)
	if err != nil {
		return nil, err
	}
	if listing == nil || strings.TrimSpace(listing.Title) == "" {
		return nil, fmt.Errorf("%w: product has no title", sourcing.ErrInvalidResponse)
	}
	if listing.DetailURL == "" {
		listing.DetailURL = target.URL
	}
	return s.normalizer.FromListing(listing, target.Platform)
}

// resolve classifies ref into a platform target
func (s *ImportService) resolve(ref string) (sourcing.Target, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return sourcing.Target{}, sourcing.ErrInvalidReference
	}

	if isDigits(ref) {
		return sourcing.Target{
			URL:        fmt.Sprintf(aliExpressItemURL, ref),
			Platform:   sourcing.PlatformAliExpress,
			ExternalID: ref,
		}, nil
	}

	rawURL := ref
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	platform := sourcing.DetectPlatform(rawURL)
	switch platform {
	case sourcing.PlatformAliExpress:
		target := sourcing.Target{URL: rawURL, Platform: platform}
		if s.extractID != nil {
			if id, ok := s.extractID(rawURL); ok {
				target.ExternalID = id
			}
		}
		return target, nil
	case sourcing.PlatformAmazon:
		return sourcing.Target{URL: rawURL, Platform: platform}, nil
	}
	if !strings.Contains(ref, ".") && !strings.Contains(ref, "/") {
		return sourcing.Target{}, sourcing.ErrInvalidReference
	}
	return sourcing.Target{}, fmt.Errorf("%w: %s", sourcing.ErrUnsupportedPlatform, ref)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
