package aliexpress

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	itemPathPattern = regexp.MustCompile(`/(?:item|i)/(\d+)(?:\.html?)?(?:/|$)`)
	numericIDRegex  = regexp.MustCompile(`^\d+$`)
)

// productIDParams are the query parameters that may carry the product ID
var productIDParams = []string{"product_id", "productId", "productIds"}

// ExtractExternalID returns the numeric product ID embedded in a product URL.
// Accepted shapes are a path ID under /item/ (any host or subdomain such as
// www., m. or a country subdomain), the short /i/<id>.html form and a
// product_id query parameter. Unrecognized URLs return "", false.
func ExtractExternalID(rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", false
	}
	if !strings.Contains(rawURL, "://") && !strings.HasPrefix(rawURL, "//") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	if m := itemPathPattern.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}

	query := u.Query()
	for _, key := range productIDParams {
		for _, v := range query[key] {
			v = strings.TrimSpace(strings.Split(v, ",")[0])
			if numericIDRegex.MatchString(v) {
				return v, true
			}
		}
	}
	return "", false
}

// IsNumericID reports whether s is a bare numeric product ID
func IsNumericID(s string) bool {
	return numericIDRegex.MatchString(strings.TrimSpace(s))
}
