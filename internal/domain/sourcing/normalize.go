package sourcing

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// PricingPolicy configures currency conversion and draft defaults.
// ExchangeRate is a fixed source-to-target multiplier, not a live rate.
type PricingPolicy struct {
	SourceCurrency      string
	TargetCurrency      string
	ExchangeRate        decimal.Decimal
	DefaultPrices       map[SourcePlatform]decimal.Decimal // target currency, major units
	FallbackPrice       decimal.Decimal
	OriginalPriceMarkup decimal.Decimal
	DefaultStock        int
}

// DefaultPricingPolicy returns USD to USD at 1:1 with the stock defaults
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		SourceCurrency: "USD",
		TargetCurrency: "USD",
		ExchangeRate:   decimal.NewFromInt(1),
		DefaultPrices: map[SourcePlatform]decimal.Decimal{
			PlatformAliExpress: decimal.RequireFromString("19.99"),
			PlatformAmazon:     decimal.RequireFromString("29.99"),
		},
		FallbackPrice:       decimal.RequireFromString("24.99"),
		OriginalPriceMarkup: decimal.RequireFromString("1.3"),
		DefaultStock:        100,
	}
}

// Normalizer converts listings and raw extractions into product drafts.
type Normalizer struct {
	policy PricingPolicy
}

// NewNormalizer creates a normalizer. Zero-valued policy fields fall back to
// DefaultPricingPolicy.
func NewNormalizer(policy PricingPolicy) *Normalizer {
	def := DefaultPricingPolicy()
	if policy.SourceCurrency == "" {
		policy.SourceCurrency = def.SourceCurrency
	}
	if policy.TargetCurrency == "" {
		policy.TargetCurrency = def.TargetCurrency
	}
	if !policy.ExchangeRate.IsPositive() {
		policy.ExchangeRate = def.ExchangeRate
	}
	if policy.DefaultPrices == nil {
		policy.DefaultPrices = def.DefaultPrices
	}
	if !policy.FallbackPrice.IsPositive() {
		policy.FallbackPrice = def.FallbackPrice
	}
	if !policy.OriginalPriceMarkup.GreaterThan(decimal.NewFromInt(1)) {
		policy.OriginalPriceMarkup = def.OriginalPriceMarkup
	}
	if policy.DefaultStock <= 0 {
		policy.DefaultStock = def.DefaultStock
	}
	return &Normalizer{policy: policy}
}

// Policy returns the effective pricing policy
func (n *Normalizer) Policy() PricingPolicy {
	return n.policy
}

// ---------------------------------------------------------------------------
// Prices
// ---------------------------------------------------------------------------

// ParsePrice extracts a number from free-form price text such as
// "US $1,299.00", "12,50 €" or "12.99 - 15.99" (first value of a range).
func ParsePrice(text string) (decimal.Decimal, bool) {
	s := firstRangeValue(text)

	// separators count only when a digit follows them
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		switch {
		case isDigit(r):
			b.WriteRune(r)
		case (r == '.' || r == ',') && i+1 < len(runes) && isDigit(runes[i+1]):
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, false
	}
	if cleaned[0] == '.' || cleaned[0] == ',' {
		cleaned = "0" + cleaned
	}

	d, err := decimal.NewFromString(normalizeSeparators(cleaned))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// firstRangeValue cuts the text at the first range separator after a digit
func firstRangeValue(s string) string {
	start := strings.IndexAny(s, "0123456789")
	if start < 0 {
		return s
	}
	if i := strings.IndexAny(s[start:], "-–—~"); i >= 0 {
		return s[:start+i]
	}
	return s
}

// normalizeSeparators rewrites decimal and thousands separators to plain "1234.56"
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// ToMinorUnits converts a major-unit amount to minor units (cents)
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts minor units back to a major-unit amount
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// Convert converts a source-currency amount to the target currency
func (n *Normalizer) Convert(source decimal.Decimal) decimal.Decimal {
	return source.Mul(n.policy.ExchangeRate)
}

// ConvertMinor converts source minor units to target minor units
func (n *Normalizer) ConvertMinor(sourceMinor int64) int64 {
	return decimal.NewFromInt(sourceMinor).Mul(n.policy.ExchangeRate).Round(0).IntPart()
}

// DefaultPrice returns the platform default price in target minor units
func (n *Normalizer) DefaultPrice(platform SourcePlatform) int64 {
	if p, ok := n.policy.DefaultPrices[platform]; ok && p.IsPositive() {
		return ToMinorUnits(p)
	}
	return ToMinorUnits(n.policy.FallbackPrice)
}

// OriginalPrice returns the source original price when it is strictly greater
// than the sale price, otherwise round(sale x markup).
func (n *Normalizer) OriginalPrice(saleMinor int64, sourceOriginalMinor *int64) int64 {
	if sourceOriginalMinor != nil && *sourceOriginalMinor > saleMinor {
		return *sourceOriginalMinor
	}
	return decimal.NewFromInt(saleMinor).Mul(n.policy.OriginalPriceMarkup).Round(0).IntPart()
}

// salePrice converts a source price to target minor units, substituting the
// platform default for non-positive results.
func (n *Normalizer) salePrice(sourceMinor int64, platform SourcePlatform) int64 {
	if sourceMinor > 0 {
		if converted := n.ConvertMinor(sourceMinor); converted > 0 {
			return converted
		}
	}
	return n.DefaultPrice(platform)
}

// ---------------------------------------------------------------------------
// Text and images
// ---------------------------------------------------------------------------

// NormalizeName collapses whitespace, trims and caps the name at 200 characters.
// Empty names become DefaultProductName.
func NormalizeName(name string) string {
	name = strings.Join(strings.Fields(norm.NFC.String(name)), " ")
	name = truncateRunes(name, MaxNameLength)
	if name == "" {
		return DefaultProductName
	}
	return name
}

// FilterImages keeps absolute http(s) URLs, drops duplicates and caps the list at 5.
func FilterImages(urls []string) []string {
	out := make([]string, 0, MaxDraftImages)
	seen := make(map[string]struct{}, len(urls))
	for _, raw := range urls {
		if len(out) == MaxDraftImages {
			break
		}
		raw = strings.TrimSpace(raw)
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		out = append(out, raw)
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}

func describe(description, name string) (string, string) {
	description = strings.TrimSpace(description)
	if description == "" {
		description = name
	}
	short := truncateRunes(strings.Join(strings.Fields(description), " "), MaxShortDescriptionLength)
	return description, short
}

// SKU builds the draft SKU from the external ID, or from a hash of the source URL
func SKU(platform SourcePlatform, externalID, sourceURL string) string {
	if externalID != "" {
		return platform.SKUPrefix() + "-" + externalID
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceURL))
	return platform.SKUPrefix() + "-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// ---------------------------------------------------------------------------
// Drafts
// ---------------------------------------------------------------------------

// FromListing builds a draft from a structured API listing
func (n *Normalizer) FromListing(l *SourceListing, platform SourcePlatform) (*ProductDraft, error) {
	name := NormalizeName(l.Title)
	price := n.salePrice(l.SalePriceMinor, platform)

	var sourceOriginal *int64
	if l.OriginalPriceMinor != nil && *l.OriginalPriceMinor > 0 {
		converted := n.ConvertMinor(*l.OriginalPriceMinor)
		sourceOriginal = &converted
	}
	original := n.OriginalPrice(price, sourceOriginal)

	description, short := describe(l.Description, name)
	specs := map[string]string{
		"source_platform": platform.DisplayName(),
		"external_id":     l.ExternalID,
		"source_currency": n.policy.SourceCurrency,
	}
	if l.Rating != nil {
		specs["rating"] = strconv.FormatFloat(*l.Rating, 'f', 1, 64)
	}
	if l.SalesVolume != nil {
		specs["sales_volume"] = strconv.FormatInt(*l.SalesVolume, 10)
	}

	draft := &ProductDraft{
		Name:               name,
		PriceMinor:         price,
		OriginalPriceMinor: &original,
		Currency:           n.policy.TargetCurrency,
		ImageURLs:          FilterImages(l.ImageURLs()),
		Description:        description,
		ShortDescription:   short,
		SKU:                SKU(platform, l.ExternalID, l.DetailURL),
		StockQuantity:      n.policy.DefaultStock,
		SourceURL:          l.DetailURL,
		SourcePlatform:     platform,
		Specifications:     specs,
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	return draft, nil
}

// FromExtraction builds a draft from a fallback chain extraction
func (n *Normalizer) FromExtraction(raw *RawExtraction, target Target) (*ProductDraft, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty extraction", ErrInvalidDraft)
	}
	name := NormalizeName(raw.Name)

	var saleSource int64
	if p, ok := ParsePrice(raw.PriceText); ok && p.IsPositive() {
		saleSource = ToMinorUnits(p)
	}
	price := n.salePrice(saleSource, target.Platform)

	var sourceOriginal *int64
	if p, ok := ParsePrice(raw.OriginalPriceText); ok && p.IsPositive() {
		converted := ToMinorUnits(n.Convert(p))
		sourceOriginal = &converted
	}
	original := n.OriginalPrice(price, sourceOriginal)

	description, short := describe(raw.Description, name)
	specs := map[string]string{
		"source_platform": target.Platform.DisplayName(),
		"source_currency": n.policy.SourceCurrency,
	}
	if target.ExternalID != "" {
		specs["external_id"] = target.ExternalID
	}

	draft := &ProductDraft{
		Name:               name,
		PriceMinor:         price,
		OriginalPriceMinor: &original,
		Currency:           n.policy.TargetCurrency,
		ImageURLs:          FilterImages(raw.Images),
		Description:        description,
		ShortDescription:   short,
		SKU:                SKU(target.Platform, target.ExternalID, target.URL),
		StockQuantity:      n.policy.DefaultStock,
		SourceURL:          target.URL,
		SourcePlatform:     target.Platform,
		Specifications:     specs,
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	return draft, nil
}
