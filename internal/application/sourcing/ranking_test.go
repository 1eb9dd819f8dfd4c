package sourcing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

func newTestRanker() *Ranker {
	return NewRanker(sourcing.DefaultScoringPolicy(), sourcing.NewNormalizer(sourcing.DefaultPricingPolicy()))
}

func validRequest(t *testing.T, req sourcing.SearchRequest) *sourcing.SearchRequest {
	t.Helper()
	require.NoError(t, req.Validate())
	return &req
}

func TestRanker_KeywordFilterAndOrdering(t *testing.T) {
	listings := []sourcing.SourceListing{
		listing("1", "Phone Case Silicone", 500, 4.0, 100),
		listing("2", "Garden Hose", 900, 4.9, 5000),
		listing("3", "Phone Charger Case Bundle", 800, 3.0, 10),
	}
	req := validRequest(t, sourcing.SearchRequest{Keywords: "phone case"})

	out := newTestRanker().Rank(listings, req)

	require.Len(t, out.Listings, 2)
	assert.Equal(t, 2, out.AfterFiltered)
	assert.Equal(t, "1", out.Listings[0].ExternalID)
	assert.Equal(t, "3", out.Listings[1].ExternalID)
	assert.Greater(t, out.Listings[0].Score, out.Listings[1].Score)
}

func TestRanker_NoKeywordsPassesEverything(t *testing.T) {
	listings := []sourcing.SourceListing{
		listing("1", "a", 100, 4, 1),
		listing("2", "b", 100, 4, 1),
	}
	out := newTestRanker().Rank(listings, validRequest(t, sourcing.SearchRequest{}))
	assert.Equal(t, 2, out.AfterFiltered)
	assert.Equal(t, []string{"1", "2"}, []string{out.Listings[0].ExternalID, out.Listings[1].ExternalID}, "ties keep input order")
}

func TestRanker_PriceFilterIsInclusive(t *testing.T) {
	listings := []sourcing.SourceListing{
		listing("low", "x", 999, 4, 1),
		listing("min", "x", 1000, 4, 1),
		listing("max", "x", 2000, 4, 1),
		listing("high", "x", 2001, 4, 1),
	}
	minP := decimal.NewFromInt(10)
	maxP := decimal.NewFromInt(20)
	out := newTestRanker().Rank(listings, validRequest(t, sourcing.SearchRequest{MinPrice: &minP, MaxPrice: &maxP}))

	ids := []string{}
	for _, l := range out.Listings {
		ids = append(ids, l.ExternalID)
	}
	assert.ElementsMatch(t, []string{"min", "max"}, ids)
}

func TestRanker_PriceFilterUsesConvertedPrice(t *testing.T) {
	policy := sourcing.DefaultPricingPolicy()
	policy.ExchangeRate = decimal.NewFromInt(2)
	r := NewRanker(sourcing.DefaultScoringPolicy(), sourcing.NewNormalizer(policy))

	minP := decimal.NewFromInt(15)
	out := r.Rank([]sourcing.SourceListing{listing("1", "x", 1000, 4, 1)},
		validRequest(t, sourcing.SearchRequest{MinPrice: &minP}))
	assert.Equal(t, 1, out.AfterFiltered)
}

func TestRanker_QualityFilters(t *testing.T) {
	unrated := sourcing.SourceListing{ExternalID: "u", Title: "x", SalePriceMinor: 100}
	listings := []sourcing.SourceListing{
		listing("good", "x", 100, 4.8, 500),
		listing("poor", "x", 100, 3.1, 500),
		listing("slow", "x", 100, 4.8, 2),
		unrated,
	}
	minRating := 4.5
	minSales := int64(100)

	out := newTestRanker().Rank(listings, validRequest(t, sourcing.SearchRequest{MinRating: &minRating}))
	assert.Equal(t, 2, out.AfterFiltered)

	out = newTestRanker().Rank(listings, validRequest(t, sourcing.SearchRequest{MinSales: &minSales}))
	assert.Equal(t, 2, out.AfterFiltered)

	out = newTestRanker().Rank(listings, validRequest(t, sourcing.SearchRequest{MinRating: &minRating, MinSales: &minSales}))
	require.Equal(t, 1, out.AfterFiltered)
	assert.Equal(t, "good", out.Listings[0].ExternalID)
}

func TestRanker_TruncatesAfterSorting(t *testing.T) {
	listings := []sourcing.SourceListing{
		listing("1", "x", 100, 1, 0),
		listing("2", "x", 100, 2, 0),
		listing("3", "x", 100, 5, 0),
	}
	out := newTestRanker().Rank(listings, validRequest(t, sourcing.SearchRequest{PageSize: 2}))

	assert.Equal(t, 3, out.AfterFiltered)
	require.Len(t, out.Listings, 2)
	assert.Equal(t, "3", out.Listings[0].ExternalID)
	assert.Equal(t, "2", out.Listings[1].ExternalID)
}

func TestRanker_CategoryExpansion(t *testing.T) {
	listings := []sourcing.SourceListing{
		listing("1", "Bluetooth Headphones", 100, 4, 1),
		listing("2", "Cotton Dress", 100, 4, 1),
	}
	out := newTestRanker().Rank(listings, validRequest(t, sourcing.SearchRequest{CategoryKeywords: []string{"electronics"}}))
	require.Equal(t, 1, out.AfterFiltered)
	assert.Equal(t, "1", out.Listings[0].ExternalID)
}
