package sourcing

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sourcing/backend/internal/domain/sourcing"
	"github.com/sourcing/backend/internal/infrastructure/telemetry"
)

// MaxFeedPageSize is the largest page a single feed request may ask for
const MaxFeedPageSize = 50

// FeedFetcher fetches one page of a recommendation feed.
// Implementations return an empty slice on transport or response failures and
// an error only for credential failures.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, feed sourcing.FeedName, count, page int) ([]sourcing.SourceListing, error)
}

// AggregateResult is the deduplicated union of several feeds
type AggregateResult struct {
	Listings       []sourcing.SourceListing
	TotalRetrieved int
	FeedsUsed      []sourcing.FeedName
}

// FeedAggregator fans out over feeds and merges the results
type FeedAggregator struct {
	fetcher FeedFetcher
	metrics *telemetry.SourcingMetrics
	logger  *zap.Logger
}

// NewFeedAggregator creates a new FeedAggregator
func NewFeedAggregator(fetcher FeedFetcher, metrics *telemetry.SourcingMetrics, logger *zap.Logger) *FeedAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedAggregator{
		fetcher: fetcher,
		metrics: metrics,
		logger:  logger.Named("feed_aggregator"),
	}
}

// PerFeedCount splits target across feeds, rounding up, clamped to [1, MaxFeedPageSize]
func PerFeedCount(target, feeds int) int {
	if feeds <= 0 {
		return 0
	}
	n := (target + feeds - 1) / feeds
	if n < 1 {
		n = 1
	}
	if n > MaxFeedPageSize {
		n = MaxFeedPageSize
	}
	return n
}

// Aggregate requests every feed concurrently and returns the deduplicated
// listings in feed order. Failed feeds contribute nothing; a credential error
// from any feed fails the whole aggregation.
func (a *FeedAggregator) Aggregate(ctx context.Context, target, page int, feeds []sourcing.FeedName) (*AggregateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "feed_aggregator", "aggregate")
	defer span.End()

	if len(feeds) == 0 {
		feeds = sourcing.DefaultFeeds()
	}
	perFeed := PerFeedCount(target, len(feeds))

	results := make([][]sourcing.SourceListing, len(feeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, feed := range feeds {
		g.Go(func() error {
			listings, err := a.fetcher.FetchFeed(gctx, feed, perFeed, page)
			if err != nil {
				return err
			}
			for j := range listings {
				if listings[j].Feed == "" {
					listings[j].Feed = feed
				}
			}
			results[i] = listings
			a.metrics.RecordFeedCall(gctx, feed.String(), len(listings))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var all []sourcing.SourceListing
	used := make([]sourcing.FeedName, 0, len(feeds))
	for i, listings := range results {
		if len(listings) == 0 {
			continue
		}
		used = append(used, feeds[i])
		all = append(all, listings...)
	}

	deduped := Dedupe(all)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrFeedCount, len(feeds),
		telemetry.SpanAttrFeedPerFeed, perFeed,
		telemetry.SpanAttrFeedFetched, len(all),
		telemetry.SpanAttrFeedUnique, len(deduped),
	)
	a.logger.Debug("Feeds aggregated",
		zap.Int("feeds", len(feeds)),
		zap.Int("per_feed", perFeed),
		zap.Int("fetched", len(all)),
		zap.Int("unique", len(deduped)),
	)

	return &AggregateResult{
		Listings:       deduped,
		TotalRetrieved: len(deduped),
		FeedsUsed:      used,
	}, nil
}

// Dedupe keeps the first listing seen for each external id, preserving order
func Dedupe(listings []sourcing.SourceListing) []sourcing.SourceListing {
	seen := make(map[string]struct{}, len(listings))
	out := make([]sourcing.SourceListing, 0, len(listings))
	for _, l := range listings {
		if _, ok := seen[l.ExternalID]; ok {
			continue
		}
		seen[l.ExternalID] = struct{}{}
		out = append(out, l)
	}
	return out
}
