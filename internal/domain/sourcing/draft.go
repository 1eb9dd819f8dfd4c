package sourcing

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Draft field limits
const (
	MaxNameLength             = 200
	MaxShortDescriptionLength = 160
	MaxDraftImages            = 5
	DefaultProductName        = "Imported product"
)

// ProductDraft is the normalized product record handed to catalog creation.
// Prices are in the target currency's minor units.
type ProductDraft struct {
	Name               string            `json:"name" validate:"required,max=200"`
	PriceMinor         int64             `json:"price_minor_units" validate:"gt=0"`
	OriginalPriceMinor *int64            `json:"original_price_minor_units,omitempty" validate:"omitempty,gt=0"`
	Currency           string            `json:"currency" validate:"required,len=3"`
	ImageURLs          []string          `json:"image_urls" validate:"max=5,dive,url"`
	Description        string            `json:"description"`
	ShortDescription   string            `json:"short_description" validate:"max=160"`
	SKU                string            `json:"sku" validate:"required"`
	StockQuantity      int               `json:"stock_quantity" validate:"gte=0"`
	SourceURL          string            `json:"source_url"`
	SourcePlatform     SourcePlatform    `json:"source_platform" validate:"required"`
	Specifications     map[string]string `json:"specifications"`
}

var draftValidate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the draft invariants before handoff
func (d *ProductDraft) Validate() error {
	if err := draftValidate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	return nil
}
