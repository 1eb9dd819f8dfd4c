package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

// SearchRequest is the body of POST /sourcing/search.
// Prices are target-currency major units, as numbers or strings.
type SearchRequest struct {
	Keywords   string           `json:"keywords" binding:"max=200"`
	Categories []string         `json:"categories" binding:"max=10,dive,max=64"`
	MinPrice   *decimal.Decimal `json:"min_price"`
	MaxPrice   *decimal.Decimal `json:"max_price"`
	MinRating  *float64         `json:"min_rating" binding:"omitempty,gte=0,lte=5"`
	MinSales   *int64           `json:"min_sales" binding:"omitempty,gte=0"`
	PageSize   int              `json:"page_size" binding:"omitempty,min=1,max=100"`
	Page       int              `json:"page" binding:"omitempty,min=1"`
	Feeds      []string         `json:"feeds" binding:"omitempty,dive,oneof=DS_bestselling DS_new_arrival DS_hot_products DS_weekly_deals"`
}

// ToDomain converts the request body into a search request
func (r *SearchRequest) ToDomain() sourcing.SearchRequest {
	req := sourcing.SearchRequest{
		Keywords:         r.Keywords,
		CategoryKeywords: r.Categories,
		MinPrice:         r.MinPrice,
		MaxPrice:         r.MaxPrice,
		MinRating:        r.MinRating,
		MinSales:         r.MinSales,
		PageSize:         r.PageSize,
		Page:             r.Page,
	}
	for _, f := range r.Feeds {
		req.Feeds = append(req.Feeds, sourcing.FeedName(f))
	}
	return req
}

// ListingResponse is one ranked listing
type ListingResponse struct {
	ExternalID         string   `json:"external_id"`
	Title              string   `json:"title"`
	MainImageURL       string   `json:"main_image_url"`
	ExtraImageURLs     []string `json:"extra_image_urls,omitempty"`
	SalePriceMinor     int64    `json:"sale_price_minor_units"`
	OriginalPriceMinor *int64   `json:"original_price_minor_units,omitempty"`
	DetailURL          string   `json:"detail_url"`
	Rating             *float64 `json:"rating,omitempty"`
	SalesVolume        *int64   `json:"recent_sales_volume,omitempty"`
	Feed               string   `json:"feed,omitempty"`
	Score              float64  `json:"score"`
}

// SearchResponse is the ranked page with retrieval statistics
type SearchResponse struct {
	Listings            []ListingResponse `json:"listings"`
	TotalRetrieved      int               `json:"total_retrieved"`
	TotalAfterFiltering int               `json:"total_after_filtering"`
	FeedsUsed           []string          `json:"feeds_used"`
}

// NewSearchResponse converts a search result for the API
func NewSearchResponse(res *sourcing.SearchResult) SearchResponse {
	out := SearchResponse{
		Listings:            make([]ListingResponse, 0, len(res.Listings)),
		TotalRetrieved:      res.TotalRetrieved,
		TotalAfterFiltering: res.TotalAfterFiltering,
		FeedsUsed:           make([]string, 0, len(res.FeedsUsed)),
	}
	for _, l := range res.Listings {
		out.Listings = append(out.Listings, ListingResponse{
			ExternalID:         l.ExternalID,
			Title:              l.Title,
			MainImageURL:       l.MainImageURL,
			ExtraImageURLs:     l.ExtraImageURLs,
			SalePriceMinor:     l.SalePriceMinor,
			OriginalPriceMinor: l.OriginalPriceMinor,
			DetailURL:          l.DetailURL,
			Rating:             l.Rating,
			SalesVolume:        l.SalesVolume,
			Feed:               l.Feed.String(),
			Score:              l.Score,
		})
	}
	for _, f := range res.FeedsUsed {
		out.FeedsUsed = append(out.FeedsUsed, f.String())
	}
	return out
}

// ---------------------------------------------------------------------------
// Import
// ---------------------------------------------------------------------------

// ImportRequest is the body of POST /sourcing/import
type ImportRequest struct {
	Reference string `json:"reference" binding:"required,max=2048"`
}

// ImportResponse carries the draft and how it was obtained
type ImportResponse struct {
	Draft *sourcing.ProductDraft `json:"draft"`
	Path  string                 `json:"path"`
	Stage string                 `json:"stage,omitempty"`
}

// ---------------------------------------------------------------------------
// OAuth
// ---------------------------------------------------------------------------

// AuthorizeResponse is returned by the authorize endpoint with format=json
type AuthorizeResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

// CredentialStatusResponse reports the platform authorization state
type CredentialStatusResponse struct {
	State     string     `json:"state"`
	OwnerID   string     `json:"owner_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
