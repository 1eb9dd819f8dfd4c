package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	appsourcing "github.com/sourcing/backend/internal/application/sourcing"
	"github.com/sourcing/backend/internal/domain/sourcing"
	"github.com/sourcing/backend/internal/interfaces/http/dto"
)

// Searcher runs a ranked product search
type Searcher interface {
	Search(ctx context.Context, req sourcing.SearchRequest) (*sourcing.SearchResult, error)
}

// Importer turns a product reference into a draft
type Importer interface {
	Import(ctx context.Context, ref string) (*appsourcing.ImportResult, error)
}

// SourcingHandler serves product search and import
type SourcingHandler struct {
	BaseHandler
	searcher Searcher
	importer Importer
}

// NewSourcingHandler creates a new SourcingHandler
func NewSourcingHandler(searcher Searcher, importer Importer) *SourcingHandler {
	return &SourcingHandler{
		searcher: searcher,
		importer: importer,
	}
}

// Search godoc
// @ID           searchSourcingProducts
// @Summary      Search source products
// @Description  Aggregates the configured feeds, filters and ranks the listings
// @Tags         sourcing
// @Accept       json
// @Produce      json
// @Param        request body dto.SearchRequest true "Search criteria"
// @Success      200 {object} dto.Response{data=dto.SearchResponse}
// @Failure      400 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Router       /sourcing/search [post]
func (h *SourcingHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	res, err := h.searcher.Search(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSearchResponse(res))
}

// Import godoc
// @ID           importSourcingProduct
// @Summary      Import a product
// @Description  Builds a catalog draft from a product URL or a numeric AliExpress id
// @Tags         sourcing
// @Accept       json
// @Produce      json
// @Param        request body dto.ImportRequest true "Product reference"
// @Success      200 {object} dto.Response{data=dto.ImportResponse}
// @Failure      400 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /sourcing/import [post]
func (h *SourcingHandler) Import(c *gin.Context) {
	var req dto.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	res, err := h.importer.Import(c.Request.Context(), req.Reference)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ImportResponse{
		Draft: res.Draft,
		Path:  res.Path,
		Stage: res.Stage,
	})
}
