package extraction

import (
	"math/rand/v2"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// SelectorSet lists CSS selectors per field, tried in order
type SelectorSet struct {
	Title         []string
	Price         []string
	OriginalPrice []string
	Images        []string
	Description   []string
}

var aliExpressSelectors = SelectorSet{
	Title: []string{
		`h1[data-pl="product-title"]`,
		".product-title-text",
		"h1",
	},
	Price: []string{
		`[class*="price--currentPriceText"]`,
		".product-price-current",
		".uniform-banner-box-price",
	},
	OriginalPrice: []string{
		`[class*="price--originalText"]`,
		".product-price-original",
		".product-price-del",
	},
	Images: []string{
		`[class*="slider--img"] img`,
		".images-view-item img",
		".magnifier-image",
	},
	Description: []string{
		"#product-description",
		".product-description",
		`[class*="description--product-description"]`,
	},
}

var amazonSelectors = SelectorSet{
	Title: []string{
		"#productTitle",
		"#title",
	},
	Price: []string{
		"#corePrice_feature_div .a-offscreen",
		"#corePriceDisplay_desktop_feature_div .a-price .a-offscreen",
		"#priceblock_dealprice",
		"#priceblock_ourprice",
		".a-price .a-offscreen",
	},
	OriginalPrice: []string{
		".a-price.a-text-price .a-offscreen",
		"#priceblock_listprice",
		".basisPrice .a-offscreen",
	},
	Images: []string{
		"#landingImage",
		"#imgTagWrapperId img",
		"#altImages img",
	},
	Description: []string{
		"#feature-bullets",
		"#productDescription",
	},
}

var genericSelectors = SelectorSet{
	Title:         []string{"h1"},
	Price:         []string{`[itemprop="price"]`, ".price"},
	OriginalPrice: []string{".original-price", "del", "s"},
	Images:        []string{`[itemprop="image"]`, "main img"},
	Description:   []string{`[itemprop="description"]`},
}

// SelectorsFor returns the selector set for a platform
func SelectorsFor(platform sourcing.SourcePlatform) SelectorSet {
	switch platform {
	case sourcing.PlatformAliExpress:
		return aliExpressSelectors
	case sourcing.PlatformAmazon:
		return amazonSelectors
	default:
		return genericSelectors
	}
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
}

// DefaultUserAgents returns a copy of the built-in desktop user agent pool
func DefaultUserAgents() []string {
	out := make([]string, len(defaultUserAgents))
	copy(out, defaultUserAgents)
	return out
}

// pickUserAgent returns a random entry of pool
func pickUserAgent(pool []string) string {
	if len(pool) == 0 {
		return defaultUserAgents[0]
	}
	return pool[rand.IntN(len(pool))]
}
