package sourcing

import (
	"context"

	"go.uber.org/zap"

	"github.com/sourcing/backend/internal/domain/sourcing"
	"github.com/sourcing/backend/internal/infrastructure/telemetry"
)

// DefaultOverfetchFactor is how many candidates are requested per result slot
const DefaultOverfetchFactor = 3

// SearchService simulates keyword search on top of recommendation feeds
type SearchService struct {
	aggregator *FeedAggregator
	ranker     *Ranker
	overfetch  int
	metrics    *telemetry.SourcingMetrics
	logger     *zap.Logger
}

// NewSearchService creates a new SearchService
func NewSearchService(
	aggregator *FeedAggregator,
	ranker *Ranker,
	overfetch int,
	metrics *telemetry.SourcingMetrics,
	logger *zap.Logger,
) *SearchService {
	if overfetch <= 0 {
		overfetch = DefaultOverfetchFactor
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchService{
		aggregator: aggregator,
		ranker:     ranker,
		overfetch:  overfetch,
		metrics:    metrics,
		logger:     logger.Named("search"),
	}
}

// Search validates the request, aggregates feeds and ranks the candidates.
// Feed failures shrink the result rather than failing the search, except
// credential errors, which are returned.
func (s *SearchService) Search(ctx context.Context, req sourcing.SearchRequest) (*sourcing.SearchResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "search", "search")
	defer span.End()

	if err := req.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	agg, err := s.aggregator.Aggregate(ctx, req.PageSize*s.overfetch, req.Page, req.Feeds)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	ranked := s.ranker.Rank(agg.Listings, &req)

	s.metrics.RecordSearch(ctx, ranked.AfterFiltered)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSearchRetrieved, agg.TotalRetrieved,
		telemetry.SpanAttrSearchAfterFiltering, ranked.AfterFiltered,
		telemetry.SpanAttrSearchReturned, len(ranked.Listings),
	)
	s.logger.Info("Search completed",
		zap.String("keywords", req.Keywords),
		zap.Strings("categories", req.CategoryKeywords),
		zap.Int("retrieved", agg.TotalRetrieved),
		zap.Int("after_filtering", ranked.AfterFiltered),
		zap.Int("returned", len(ranked.Listings)),
	)

	return &sourcing.SearchResult{
		Listings:            ranked.Listings,
		TotalRetrieved:      agg.TotalRetrieved,
		TotalAfterFiltering: ranked.AfterFiltered,
		FeedsUsed:           agg.FeedsUsed,
	}, nil
}
