package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appsourcing "github.com/sourcing/backend/internal/application/sourcing"
	"github.com/sourcing/backend/internal/domain/sourcing"
	"github.com/sourcing/backend/internal/interfaces/http/dto"
	"github.com/sourcing/backend/internal/interfaces/http/middleware"
)

func sourcingRouter(h *SourcingHandler) *gin.Engine {
	middleware.SetupValidator()
	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/sourcing/search", h.Search)
	r.POST("/sourcing/import", h.Import)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSourcingHandler_Search(t *testing.T) {
	t.Run("returns ranked listings", func(t *testing.T) {
		searcher := new(MockSearcher)
		h := NewSourcingHandler(searcher, new(MockImporter))

		rating := 4.8
		searcher.On("Search", mock.Anything, mock.MatchedBy(func(req sourcing.SearchRequest) bool {
			return req.Keywords == "desk lamp" &&
				req.MinPrice != nil && req.MinPrice.Equal(decimal.RequireFromString("5.5")) &&
				len(req.Feeds) == 1 && req.Feeds[0] == sourcing.FeedHotProducts &&
				req.PageSize == 10
		})).Return(&sourcing.SearchResult{
			Listings: []sourcing.RankedListing{{
				SourceListing: sourcing.SourceListing{
					ExternalID:     "1005001",
					Title:          "LED desk lamp",
					SalePriceMinor: 1299,
					DetailURL:      "https://www.aliexpress.com/item/1005001.html",
					Rating:         &rating,
					Feed:           sourcing.FeedHotProducts,
				},
				Score: 3.5,
			}},
			TotalRetrieved:      12,
			TotalAfterFiltering: 4,
			FeedsUsed:           []sourcing.FeedName{sourcing.FeedHotProducts},
		}, nil)

		w := postJSON(sourcingRouter(h), "/sourcing/search",
			`{"keywords":"desk lamp","min_price":"5.5","feeds":["DS_hot_products"],"page_size":10}`)

		assert.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `"external_id":"1005001"`)
		assert.Contains(t, body, `"total_retrieved":12`)
		assert.Contains(t, body, `"total_after_filtering":4`)
		assert.Contains(t, body, `"feeds_used":["DS_hot_products"]`)
		searcher.AssertExpectations(t)
	})

	t.Run("rejects unknown feeds before searching", func(t *testing.T) {
		searcher := new(MockSearcher)
		h := NewSourcingHandler(searcher, new(MockImporter))

		w := postJSON(sourcingRouter(h), "/sourcing/search", `{"feeds":["DS_everything"]}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeValidation)
		searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	})

	t.Run("rejects oversized pages", func(t *testing.T) {
		h := NewSourcingHandler(new(MockSearcher), new(MockImporter))

		w := postJSON(sourcingRouter(h), "/sourcing/search", `{"page_size":500}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "page_size")
	})

	t.Run("maps service validation errors", func(t *testing.T) {
		searcher := new(MockSearcher)
		h := NewSourcingHandler(searcher, new(MockImporter))
		searcher.On("Search", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: min_price exceeds max_price", sourcing.ErrInvalidSearchRequest))

		w := postJSON(sourcingRouter(h), "/sourcing/search", `{"min_price":10,"max_price":5}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "min_price exceeds max_price")
	})

	t.Run("requires authorization", func(t *testing.T) {
		searcher := new(MockSearcher)
		h := NewSourcingHandler(searcher, new(MockImporter))
		searcher.On("Search", mock.Anything, mock.Anything).Return(nil, sourcing.ErrNoCredential)

		w := postJSON(sourcingRouter(h), "/sourcing/search", `{}`)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeCredentialRequired)
	})

	t.Run("empty result keeps arrays", func(t *testing.T) {
		searcher := new(MockSearcher)
		h := NewSourcingHandler(searcher, new(MockImporter))
		searcher.On("Search", mock.Anything, mock.Anything).Return(&sourcing.SearchResult{}, nil)

		w := postJSON(sourcingRouter(h), "/sourcing/search", `{}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"listings":[]`)
	})
}

func TestSourcingHandler_Import(t *testing.T) {
	ref := "https://www.aliexpress.com/item/1005001.html"

	t.Run("returns the draft and path", func(t *testing.T) {
		importer := new(MockImporter)
		h := NewSourcingHandler(new(MockSearcher), importer)

		importer.On("Import", mock.Anything, ref).Return(&appsourcing.ImportResult{
			Draft: &sourcing.ProductDraft{
				Name:           "LED desk lamp",
				PriceMinor:     1299,
				Currency:       "USD",
				SKU:            "AE-1005001",
				SourceURL:      ref,
				SourcePlatform: sourcing.PlatformAliExpress,
			},
			Path: appsourcing.ImportPathAPI,
		}, nil)

		w := postJSON(sourcingRouter(h), "/sourcing/import", `{"reference":"`+ref+`"}`)

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `"sku":"AE-1005001"`)
		assert.Contains(t, body, `"path":"`+appsourcing.ImportPathAPI+`"`)
		importer.AssertExpectations(t)
	})

	t.Run("requires a reference", func(t *testing.T) {
		importer := new(MockImporter)
		h := NewSourcingHandler(new(MockSearcher), importer)

		w := postJSON(sourcingRouter(h), "/sourcing/import", `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "reference")
		importer.AssertNotCalled(t, "Import", mock.Anything, mock.Anything)
	})

	t.Run("import failure is unprocessable", func(t *testing.T) {
		importer := new(MockImporter)
		h := NewSourcingHandler(new(MockSearcher), importer)
		importer.On("Import", mock.Anything, ref).
			Return(nil, fmt.Errorf("%w: %w", sourcing.ErrImportFailed, sourcing.ErrExtractionFailed))

		w := postJSON(sourcingRouter(h), "/sourcing/import", `{"reference":"`+ref+`"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeImportFailed)
	})

	t.Run("unsupported platform", func(t *testing.T) {
		importer := new(MockImporter)
		h := NewSourcingHandler(new(MockSearcher), importer)
		importer.On("Import", mock.Anything, "https://shop.example.com/p/1").
			Return(nil, sourcing.ErrUnsupportedPlatform)

		w := postJSON(sourcingRouter(h), "/sourcing/import", `{"reference":"https://shop.example.com/p/1"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeUnsupportedPlatform)
	})
}
