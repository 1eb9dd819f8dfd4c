package sourcing

import (
	"sort"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// Ranker filters and orders listings by relevance
type Ranker struct {
	policy     sourcing.ScoringPolicy
	normalizer *sourcing.Normalizer
}

// NewRanker creates a new Ranker. The normalizer converts source prices
// before the price filter is applied.
func NewRanker(policy sourcing.ScoringPolicy, normalizer *sourcing.Normalizer) *Ranker {
	if normalizer == nil {
		normalizer = sourcing.NewNormalizer(sourcing.DefaultPricingPolicy())
	}
	return &Ranker{policy: policy, normalizer: normalizer}
}

// RankOutcome holds the ranked page and the filtered total
type RankOutcome struct {
	Listings      []sourcing.RankedListing
	AfterFiltered int
}

// Rank applies the keyword, price and quality filters, scores the survivors,
// sorts them stably by descending score and keeps the first pageSize.
func (r *Ranker) Rank(listings []sourcing.SourceListing, req *sourcing.SearchRequest) *RankOutcome {
	keywords := sourcing.SearchKeywords(req.Keywords, req.CategoryKeywords)

	ranked := make([]sourcing.RankedListing, 0, len(listings))
	for i := range listings {
		l := &listings[i]
		if !sourcing.MatchesAny(l.Title, keywords) {
			continue
		}
		if !r.priceInRange(l, req) {
			continue
		}
		if req.MinRating != nil && l.RatingOrZero() < *req.MinRating {
			continue
		}
		if req.MinSales != nil && l.SalesOrZero() < *req.MinSales {
			continue
		}
		ranked = append(ranked, sourcing.RankedListing{
			SourceListing: *l,
			Score:         r.policy.Score(l, keywords),
		})
	}

	total := len(ranked)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if req.PageSize > 0 && len(ranked) > req.PageSize {
		ranked = ranked[:req.PageSize]
	}
	return &RankOutcome{Listings: ranked, AfterFiltered: total}
}

func (r *Ranker) priceInRange(l *sourcing.SourceListing, req *sourcing.SearchRequest) bool {
	if req.MinPrice == nil && req.MaxPrice == nil {
		return true
	}
	price := sourcing.FromMinorUnits(r.normalizer.ConvertMinor(l.SalePriceMinor))
	if req.MinPrice != nil && price.LessThan(*req.MinPrice) {
		return false
	}
	if req.MaxPrice != nil && price.GreaterThan(*req.MaxPrice) {
		return false
	}
	return true
}
