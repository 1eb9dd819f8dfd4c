package aliexpress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractExternalID(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		wantID string
		wantOK bool
	}{
		{"item path", "https://www.platformx.com/item/123456.html", "123456", true},
		{"item path with tracking query", "https://www.aliexpress.com/item/1005006.html?spm=a2g0o", "1005006", true},
		{"country subdomain", "https://de.aliexpress.com/item/1005001234567890.html", "1005001234567890", true},
		{"mobile subdomain", "https://m.aliexpress.us/item/3256805.html#nav", "3256805", true},
		{"short form", "https://a.aliexpress.com/i/4001.html", "4001", true},
		{"no scheme", "aliexpress.com/item/777.html", "777", true},
		{"query parameter", "https://sale.aliexpress.com/deal.htm?product_id=998877", "998877", true},
		{"camel query parameter", "https://www.aliexpress.com/ssr/300?productId=556677&x=1", "556677", true},
		{"list query parameter", "https://www.aliexpress.com/gcp?productIds=111,222", "111", true},
		{"non numeric item", "https://www.aliexpress.com/item/abc.html", "", false},
		{"store page", "https://www.aliexpress.com/store/912345", "", false},
		{"no pattern", "https://www.platformx.com/category/phones", "", false},
		{"empty", "", "", false},
		{"garbage", "not a url", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ExtractExternalID(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestIsNumericID(t *testing.T) {
	assert.True(t, IsNumericID("1005001"))
	assert.True(t, IsNumericID(" 42 "))
	assert.False(t, IsNumericID("12a"))
	assert.False(t, IsNumericID(""))
}
