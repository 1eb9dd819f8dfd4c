package sourcing

import (
	"net/url"
	"strings"
)

// SourcePlatform identifies the marketplace a product comes from
type SourcePlatform string

const (
	// PlatformAliExpress has a structured API and page extraction
	PlatformAliExpress SourcePlatform = "ALIEXPRESS"
	// PlatformAmazon is reachable through page extraction only
	PlatformAmazon SourcePlatform = "AMAZON"
	// PlatformUnknown is any host that is not recognized
	PlatformUnknown SourcePlatform = "UNKNOWN"
)

// IsValid returns true for the supported source platforms
func (p SourcePlatform) IsValid() bool {
	switch p {
	case PlatformAliExpress, PlatformAmazon:
		return true
	default:
		return false
	}
}

// String returns the string representation of SourcePlatform
func (p SourcePlatform) String() string {
	return string(p)
}

// DisplayName returns a human-readable name for the platform
func (p SourcePlatform) DisplayName() string {
	switch p {
	case PlatformAliExpress:
		return "AliExpress"
	case PlatformAmazon:
		return "Amazon"
	default:
		return "Unknown"
	}
}

// SKUPrefix returns the prefix used for generated draft SKUs
func (p SourcePlatform) SKUPrefix() string {
	switch p {
	case PlatformAliExpress:
		return "AE"
	case PlatformAmazon:
		return "AMZ"
	default:
		return "SRC"
	}
}

// DetectPlatform maps a product URL to its source platform by host name.
// Country and mobile subdomains (de.aliexpress.com, m.aliexpress.us,
// www.amazon.co.uk) are recognized.
func DetectPlatform(rawURL string) SourcePlatform {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return PlatformUnknown
	}
	host := strings.ToLower(u.Hostname())
	labels := strings.Split(host, ".")
	for _, label := range labels {
		switch label {
		case "aliexpress":
			return PlatformAliExpress
		case "amazon":
			return PlatformAmazon
		}
	}
	return PlatformUnknown
}
