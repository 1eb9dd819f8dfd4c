package sourcing

import "context"

// Target is a product page to retrieve
type Target struct {
	URL        string
	Platform   SourcePlatform
	ExternalID string
}

// RawExtraction is the unnormalized output of one retrieval strategy
type RawExtraction struct {
	Name              string
	PriceText         string
	OriginalPriceText string
	Images            []string
	Description       string
}

// Usable reports whether the extraction carries enough to build a draft.
// A page without a product title is treated as a block or error page.
func (r *RawExtraction) Usable() bool {
	return r != nil && r.Name != ""
}

// Extractor is one strategy of the fallback retrieval chain.
type Extractor interface {
	// Name identifies the strategy in logs and metrics.
	Name() string
	// Extract retrieves the raw product fields for target.
	Extract(ctx context.Context, target Target) (*RawExtraction, error)
}
