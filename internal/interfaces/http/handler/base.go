// Package handler implements the HTTP endpoints of the sourcing API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sourcing/backend/internal/infrastructure/logger"
	"github.com/sourcing/backend/internal/interfaces/http/dto"
	"github.com/sourcing/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response, deriving the status from the code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// ValidationError sends a 400 response describing the rejected fields
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, middleware.FormatValidationErrors(err, middleware.GetRequestID(c)))
}

// HandleError maps a service error onto the API error taxonomy. Server-side
// failures are logged with the request logger and attached to the context
// for the tracing middleware.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code, message := dto.ErrorCodeFor(err)
	status := dto.GetHTTPStatus(code)

	reqLog := logger.GetGinLogger(c)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		reqLog.Error("Request failed", zap.String("code", code), zap.Error(err))
	} else {
		reqLog.Info("Request rejected", zap.String("code", code), zap.Error(err))
	}

	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}
