package sourcing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/sourcing/backend/internal/domain/sourcing"
	"github.com/sourcing/backend/internal/infrastructure/aliexpress"
	"github.com/sourcing/backend/internal/infrastructure/telemetry"
)

func newTestSearchService(t *testing.T, fetcher FeedFetcher) *SearchService {
	t.Helper()
	metrics, err := telemetry.NewSourcingMetrics(telemetry.SourcingMetricsConfig{
		Meter:  noop.NewMeterProvider().Meter("test"),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	return NewSearchService(
		NewFeedAggregator(fetcher, metrics, zap.NewNop()),
		newTestRanker(),
		0,
		metrics,
		zap.NewNop(),
	)
}

func TestSearchService_Search(t *testing.T) {
	fetcher := &stubFeedFetcher{
		listings: map[sourcing.FeedName][]sourcing.SourceListing{
			sourcing.FeedBestSelling: {
				listing("1", "Wireless Phone Charger", 1500, 4.7, 2000),
				listing("2", "Silk Scarf", 900, 4.9, 50),
			},
			sourcing.FeedHotProducts: {
				listing("1", "Wireless Phone Charger", 1500, 4.7, 2000),
				listing("3", "Phone Stand", 500, 4.1, 10),
			},
		},
	}
	svc := newTestSearchService(t, fetcher)

	result, err := svc.Search(context.Background(), sourcing.SearchRequest{Keywords: "phone", PageSize: 10})

	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalRetrieved)
	assert.Equal(t, 2, result.TotalAfterFiltering)
	require.Len(t, result.Listings, 2)
	assert.Equal(t, "1", result.Listings[0].ExternalID)
	assert.Equal(t, []sourcing.FeedName{sourcing.FeedBestSelling, sourcing.FeedHotProducts}, result.FeedsUsed)

	for _, c := range fetcher.calls {
		assert.Equal(t, PerFeedCount(10*DefaultOverfetchFactor, 4), c.Count)
		assert.Equal(t, 1, c.Page)
	}
}

func TestSearchService_AllFeedsFail(t *testing.T) {
	svc := newTestSearchService(t, &stubFeedFetcher{})

	result, err := svc.Search(context.Background(), sourcing.SearchRequest{Keywords: "anything"})

	require.NoError(t, err)
	assert.Empty(t, result.Listings)
	assert.Zero(t, result.TotalRetrieved)
	assert.Empty(t, result.FeedsUsed)
}

func TestSearchService_InvalidRequest(t *testing.T) {
	fetcher := &stubFeedFetcher{}
	svc := newTestSearchService(t, fetcher)

	_, err := svc.Search(context.Background(), sourcing.SearchRequest{PageSize: sourcing.MaxPageSize + 1})

	assert.ErrorIs(t, err, sourcing.ErrInvalidSearchRequest)
	assert.Empty(t, fetcher.calls)
}

func TestSearchService_CredentialErrorIsReturned(t *testing.T) {
	fetcher := &stubFeedFetcher{
		listings: map[sourcing.FeedName][]sourcing.SourceListing{
			sourcing.FeedBestSelling: {listing("1", "Phone Case", 500, 4.5, 10)},
		},
		errs: map[sourcing.FeedName]error{
			sourcing.FeedHotProducts: sourcing.ErrNoCredential,
		},
	}
	svc := newTestSearchService(t, fetcher)

	result, err := svc.Search(context.Background(), sourcing.SearchRequest{Keywords: "phone"})

	assert.ErrorIs(t, err, sourcing.ErrNoCredential)
	assert.Nil(t, result)
}

func TestSearchService_WithoutStoredCredential(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	credentials, err := NewCredentialService(&memoryCredentials{}, &countingExchanger{now: time.Now},
		CredentialServiceConfig{StateSecret: testStateSecret}, nil, zap.NewNop())
	require.NoError(t, err)
	client, err := aliexpress.NewClient(&aliexpress.Config{
		AppKey:      "app",
		AppSecret:   "secret",
		RedirectURI: "https://shop.example.com/cb",
		APIBaseURL:  server.URL,
	}, credentials, zap.NewNop())
	require.NoError(t, err)

	svc := newTestSearchService(t, client)
	result, err := svc.Search(context.Background(), sourcing.SearchRequest{Keywords: "phone"})

	assert.ErrorIs(t, err, sourcing.ErrNoCredential)
	assert.Nil(t, result)
	assert.Zero(t, hits.Load(), "no platform call without a credential")
}
