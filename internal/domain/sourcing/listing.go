package sourcing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FeedName is a curated, platform-defined list of recommended products
type FeedName string

const (
	FeedBestSelling FeedName = "DS_bestselling"
	FeedNewArrival  FeedName = "DS_new_arrival"
	FeedHotProducts FeedName = "DS_hot_products"
	FeedWeeklyDeals FeedName = "DS_weekly_deals"
)

// DefaultFeeds returns the four recognized feeds in their default order
func DefaultFeeds() []FeedName {
	return []FeedName{FeedBestSelling, FeedNewArrival, FeedHotProducts, FeedWeeklyDeals}
}

// IsValid returns true if the feed is one of the recognized feeds
func (f FeedName) IsValid() bool {
	switch f {
	case FeedBestSelling, FeedNewArrival, FeedHotProducts, FeedWeeklyDeals:
		return true
	default:
		return false
	}
}

// String returns the string representation of FeedName
func (f FeedName) String() string {
	return string(f)
}

// SourceListing is one product as returned by the source platform.
// Prices are in the source currency's minor units.
type SourceListing struct {
	ExternalID         string   `json:"external_id"`
	Title              string   `json:"title"`
	MainImageURL       string   `json:"main_image_url"`
	ExtraImageURLs     []string `json:"extra_image_urls,omitempty"`
	SalePriceMinor     int64    `json:"sale_price_minor_units"`
	OriginalPriceMinor *int64   `json:"original_price_minor_units,omitempty"`
	DetailURL          string   `json:"detail_url"`
	Rating             *float64 `json:"rating,omitempty"`
	SalesVolume        *int64   `json:"recent_sales_volume,omitempty"`
	Description        string   `json:"description,omitempty"`
	Feed               FeedName `json:"feed,omitempty"`
}

// RatingOrZero returns the rating, or 0 when unknown
func (l *SourceListing) RatingOrZero() float64 {
	if l.Rating == nil {
		return 0
	}
	return *l.Rating
}

// SalesOrZero returns the recent sales volume, or 0 when unknown
func (l *SourceListing) SalesOrZero() int64 {
	if l.SalesVolume == nil {
		return 0
	}
	return *l.SalesVolume
}

// ImageURLs returns the main image followed by the extra images
func (l *SourceListing) ImageURLs() []string {
	urls := make([]string, 0, len(l.ExtraImageURLs)+1)
	if l.MainImageURL != "" {
		urls = append(urls, l.MainImageURL)
	}
	return append(urls, l.ExtraImageURLs...)
}

// Search request limits
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SearchRequest describes a simulated keyword/category search over feeds.
// Prices are in the target currency's major units.
type SearchRequest struct {
	Keywords         string
	CategoryKeywords []string
	MinPrice         *decimal.Decimal
	MaxPrice         *decimal.Decimal
	MinRating        *float64
	MinSales         *int64
	PageSize         int
	Page             int
	Feeds            []FeedName
}

// Validate checks bounds and fills defaults in place
func (r *SearchRequest) Validate() error {
	if r.PageSize < 0 || r.PageSize > MaxPageSize {
		return fmt.Errorf("%w: page_size must be between 1 and %d", ErrInvalidSearchRequest, MaxPageSize)
	}
	if r.PageSize == 0 {
		r.PageSize = DefaultPageSize
	}
	if r.Page < 0 {
		return fmt.Errorf("%w: page must be positive", ErrInvalidSearchRequest)
	}
	if r.Page == 0 {
		r.Page = 1
	}
	if r.MinPrice != nil && r.MinPrice.IsNegative() {
		return fmt.Errorf("%w: min_price cannot be negative", ErrInvalidSearchRequest)
	}
	if r.MaxPrice != nil && r.MaxPrice.IsNegative() {
		return fmt.Errorf("%w: max_price cannot be negative", ErrInvalidSearchRequest)
	}
	if r.MinPrice != nil && r.MaxPrice != nil && r.MinPrice.GreaterThan(*r.MaxPrice) {
		return fmt.Errorf("%w: min_price exceeds max_price", ErrInvalidSearchRequest)
	}
	if r.MinRating != nil && (*r.MinRating < 0 || *r.MinRating > 5) {
		return fmt.Errorf("%w: min_rating must be between 0 and 5", ErrInvalidSearchRequest)
	}
	if r.MinSales != nil && *r.MinSales < 0 {
		return fmt.Errorf("%w: min_sales cannot be negative", ErrInvalidSearchRequest)
	}
	if len(r.Feeds) == 0 {
		r.Feeds = DefaultFeeds()
	}
	for _, f := range r.Feeds {
		if !f.IsValid() {
			return fmt.Errorf("%w: unknown feed %q", ErrInvalidSearchRequest, f)
		}
	}
	r.Keywords = strings.TrimSpace(r.Keywords)
	return nil
}

// RankedListing is a listing with its relevance score
type RankedListing struct {
	SourceListing
	Score float64 `json:"score"`
}

// SearchResult is the ranked, truncated outcome of a search
type SearchResult struct {
	Listings            []RankedListing
	TotalRetrieved      int
	TotalAfterFiltering int
	FeedsUsed           []FeedName
}
