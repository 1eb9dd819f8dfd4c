package extraction

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// ParseStructured reads product data from machine-readable page markup.
// Sources in priority order: JSON-LD Product, og:/product: meta tags, then
// the first maxImages <img> elements for images only. Later sources fill
// fields the earlier ones left empty.
func ParseStructured(html, pageURL string, maxImages int) (*sourcing.RawExtraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("extraction: failed to parse html: %w", err)
	}
	base, _ := url.Parse(pageURL)

	raw := &sourcing.RawExtraction{}
	if p := findJSONLDProduct(doc); p != nil {
		mergeJSONLD(raw, p)
	}
	mergeMeta(raw, doc)
	if len(raw.Images) == 0 {
		raw.Images = imgSources(doc.Find("img"), maxImages)
	}
	raw.Images = resolveAll(base, raw.Images)
	return raw, nil
}

// ParseWithSelectors reads product data with a CSS selector set, filling any
// gaps from the page's structured markup.
func ParseWithSelectors(html, pageURL string, set SelectorSet, maxImages int) (*sourcing.RawExtraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("extraction: failed to parse html: %w", err)
	}
	base, _ := url.Parse(pageURL)

	raw := &sourcing.RawExtraction{
		Name:              firstText(doc, set.Title),
		PriceText:         firstText(doc, set.Price),
		OriginalPriceText: firstText(doc, set.OriginalPrice),
		Description:       firstText(doc, set.Description),
	}
	for _, sel := range set.Images {
		if imgs := imgSources(doc.Find(sel), maxImages); len(imgs) > 0 {
			raw.Images = imgs
			break
		}
	}

	if p := findJSONLDProduct(doc); p != nil {
		mergeJSONLD(raw, p)
	}
	mergeMeta(raw, doc)
	raw.Images = resolveAll(base, raw.Images)
	return raw, nil
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		text := strings.Join(strings.Fields(doc.Find(sel).First().Text()), " ")
		if text != "" {
			return truncate(text, maxDescriptionLength)
		}
	}
	return ""
}

// imgSources collects image URLs, preferring lazy-load and high-resolution attributes
func imgSources(sel *goquery.Selection, limit int) []string {
	var out []string
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"data-old-hires", "data-src", "src"} {
			if v, ok := s.Attr(attr); ok {
				v = strings.TrimSpace(v)
				if v != "" && !strings.HasPrefix(v, "data:") {
					out = append(out, v)
					break
				}
			}
		}
		return limit <= 0 || len(out) < limit
	})
	return out
}

// ---------------------------------------------------------------------------
// JSON-LD
// ---------------------------------------------------------------------------

func findJSONLDProduct(doc *goquery.Document) map[string]any {
	var product map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		// numbers keep their literal text so large prices are not reformatted
		dec := json.NewDecoder(strings.NewReader(s.Text()))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return true
		}
		product = searchProduct(v)
		return product == nil
	})
	return product
}

// searchProduct walks arrays and @graph containers for a node typed Product
func searchProduct(v any) map[string]any {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if p := searchProduct(item); p != nil {
				return p
			}
		}
	case map[string]any:
		if isProductType(node["@type"]) {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return searchProduct(graph)
		}
	}
	return nil
}

func isProductType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "Product"
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

func mergeJSONLD(raw *sourcing.RawExtraction, p map[string]any) {
	if raw.Name == "" {
		raw.Name = strings.TrimSpace(stringOf(p["name"]))
	}
	if raw.Description == "" {
		raw.Description = truncate(strings.TrimSpace(stringOf(p["description"])), maxDescriptionLength)
	}
	if raw.PriceText == "" {
		raw.PriceText = offerPrice(p["offers"])
	}
	if len(raw.Images) == 0 {
		raw.Images = jsonLDImages(p["image"])
	}
}

// offerPrice reads price, or lowPrice for aggregate offers, from an offer or offer list
func offerPrice(v any) string {
	switch o := v.(type) {
	case []any:
		for _, item := range o {
			if p := offerPrice(item); p != "" {
				return p
			}
		}
	case map[string]any:
		for _, key := range []string{"price", "lowPrice"} {
			if s := stringOf(o[key]); s != "" {
				return s
			}
		}
		if spec, ok := o["priceSpecification"]; ok {
			return offerPrice(spec)
		}
	}
	return ""
}

func jsonLDImages(v any) []string {
	switch img := v.(type) {
	case string:
		if img != "" {
			return []string{img}
		}
	case map[string]any:
		if u := stringOf(img["url"]); u != "" {
			return []string{u}
		}
	case []any:
		var out []string
		for _, item := range img {
			out = append(out, jsonLDImages(item)...)
		}
		return out
	}
	return nil
}

func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	}
	return ""
}

// ---------------------------------------------------------------------------
// Meta tags
// ---------------------------------------------------------------------------

func metaContent(doc *goquery.Document, names ...string) string {
	for _, name := range names {
		sel := fmt.Sprintf(`meta[property=%q], meta[name=%q]`, name, name)
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func mergeMeta(raw *sourcing.RawExtraction, doc *goquery.Document) {
	if raw.Name == "" {
		raw.Name = metaContent(doc, "og:title", "twitter:title")
	}
	if raw.Description == "" {
		raw.Description = truncate(metaContent(doc, "og:description", "description"), maxDescriptionLength)
	}
	if raw.PriceText == "" {
		raw.PriceText = metaContent(doc, "product:sale_price:amount", "product:price:amount", "og:price:amount")
	}
	if raw.OriginalPriceText == "" {
		raw.OriginalPriceText = metaContent(doc, "product:original_price:amount")
	}
	if len(raw.Images) == 0 {
		doc.Find(`meta[property="og:image"]`).Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
				raw.Images = append(raw.Images, strings.TrimSpace(v))
			}
		})
	}
}

// ---------------------------------------------------------------------------
// URLs
// ---------------------------------------------------------------------------

// resolveAll makes relative and protocol-relative image URLs absolute
func resolveAll(base *url.URL, refs []string) []string {
	if len(refs) == 0 {
		return refs
	}
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		u, err := url.Parse(ref)
		if err != nil {
			continue
		}
		if base != nil && base.Scheme != "" {
			u = base.ResolveReference(u)
		} else if u.Scheme == "" && strings.HasPrefix(ref, "//") {
			u.Scheme = "https"
		}
		out = append(out, u.String())
	}
	return out
}

func truncate(s string, limit int) string {
	if r := []rune(s); len(r) > limit {
		return string(r[:limit])
	}
	return s
}
