package aliexpress

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// FieldRule locates one candidate value in a loosely structured product payload.
// Path elements are map keys (string) or array indexes (int).
type FieldRule struct {
	Name string
	Path []any
}

// rule is shorthand for building a FieldRule
func rule(name string, path ...any) FieldRule {
	return FieldRule{Name: name, Path: path}
}

// SalePriceRules lists sale price candidates in priority order
var SalePriceRules = []FieldRule{
	rule("base.min_price", "ae_item_base_info_dto", "min_price"),
	rule("base.max_price", "ae_item_base_info_dto", "max_price"),
	rule("sku[0].offer_sale_price", "ae_item_sku_info_dtos", "ae_item_sku_info_d_t_o", 0, "offer_sale_price"),
	rule("sku[0].sku_price", "ae_item_sku_info_dtos", "ae_item_sku_info_d_t_o", 0, "sku_price"),
	rule("properties.price", "ae_item_properties", "price"),
	rule("target_sale_price", "target_sale_price"),
	rule("target_original_price", "target_original_price"),
}

// OriginalPriceRules lists original (list) price candidates in priority order
var OriginalPriceRules = []FieldRule{
	rule("sku[0].sku_price", "ae_item_sku_info_dtos", "ae_item_sku_info_d_t_o", 0, "sku_price"),
	rule("target_original_price", "target_original_price"),
	rule("original_price", "original_price"),
}

var (
	titleRules = []FieldRule{
		rule("base.subject", "ae_item_base_info_dto", "subject"),
		rule("subject", "subject"),
		rule("product_title", "product_title"),
	}
	ratingRules = []FieldRule{
		rule("base.avg_evaluation_rating", "ae_item_base_info_dto", "avg_evaluation_rating"),
		rule("avg_evaluation_rating", "avg_evaluation_rating"),
	}
	salesRules = []FieldRule{
		rule("base.sales_count", "ae_item_base_info_dto", "sales_count"),
		rule("lastest_volume", "lastest_volume"),
	}
	imageRules = []FieldRule{
		rule("multimedia.image_urls", "ae_multimedia_info_dto", "image_urls"),
		rule("product_main_image_url", "product_main_image_url"),
	}
	descriptionRules = []FieldRule{
		rule("base.detail", "ae_item_base_info_dto", "detail"),
		rule("base.mobile_detail", "ae_item_base_info_dto", "mobile_detail"),
	}
)

// Lookup walks the rule path and returns the scalar found there as a string
func (r FieldRule) Lookup(raw map[string]any) (string, bool) {
	var cur any = raw
	for _, step := range r.Path {
		switch key := step.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return "", false
			}
			if cur, ok = m[key]; !ok {
				return "", false
			}
		case int:
			arr, ok := cur.([]any)
			if !ok || key < 0 || key >= len(arr) {
				return "", false
			}
			cur = arr[key]
		default:
			return "", false
		}
	}
	return scalarString(cur)
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		val = strings.TrimSpace(val)
		return val, val != ""
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

// FirstString returns the first non-empty value matched by the rules
func FirstString(raw map[string]any, rules []FieldRule) (string, string, bool) {
	for _, r := range rules {
		if v, ok := r.Lookup(raw); ok {
			return v, r.Name, true
		}
	}
	return "", "", false
}

// FirstPrice returns the first strictly positive price matched by the rules
// together with the name of the rule that produced it.
func FirstPrice(raw map[string]any, rules []FieldRule) (decimal.Decimal, string, bool) {
	for _, r := range rules {
		v, ok := r.Lookup(raw)
		if !ok {
			continue
		}
		if p, ok := sourcing.ParsePrice(v); ok && p.IsPositive() {
			return p, r.Name, true
		}
	}
	return decimal.Zero, "", false
}
