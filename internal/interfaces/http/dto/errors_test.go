package dto

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeCredentialRequired, http.StatusConflict},
		{ErrCodeAuthExchangeFailed, http.StatusBadGateway},
		{ErrCodeImportFailed, http.StatusUnprocessableEntity},
		{ErrCodeUnsupportedPlatform, http.StatusBadRequest},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestErrorCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"no credential", sourcing.ErrNoCredential, ErrCodeCredentialRequired},
		{"wrapped refresh unavailable", fmt.Errorf("token: %w", sourcing.ErrRefreshUnavailable), ErrCodeCredentialRequired},
		{"auth exchange", &sourcing.AuthExchangeError{StatusCode: 400, Code: "invalid_grant", Message: "expired"}, ErrCodeAuthExchangeFailed},
		{"invalid state", fmt.Errorf("%w: signature", sourcing.ErrInvalidState), ErrCodeInvalidState},
		{"import failed", fmt.Errorf("%w: %w", sourcing.ErrImportFailed, sourcing.ErrExtractionFailed), ErrCodeImportFailed},
		{"import failed on credential", fmt.Errorf("%w: %w", sourcing.ErrImportFailed, sourcing.ErrNoCredential), ErrCodeImportFailed},
		{"unsupported platform", fmt.Errorf("%w: ebay.com", sourcing.ErrUnsupportedPlatform), ErrCodeUnsupportedPlatform},
		{"invalid reference", sourcing.ErrInvalidReference, ErrCodeInvalidReference},
		{"invalid search", fmt.Errorf("%w: page", sourcing.ErrInvalidSearchRequest), ErrCodeValidation},
		{"platform error", &sourcing.PlatformApplicationError{Code: "isv.param"}, ErrCodePlatformError},
		{"transport", &sourcing.TransportError{Op: "feed", Err: errors.New("reset")}, ErrCodeUpstreamUnavailable},
		{"unknown", errors.New("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := ErrorCodeFor(tt.err)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, msg)
		})
	}

	t.Run("internal errors do not leak details", func(t *testing.T) {
		_, msg := ErrorCodeFor(errors.New("dial tcp 10.0.0.5:5432: refused"))
		assert.NotContains(t, msg, "10.0.0.5")
	})
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{
		{Field: "page_size", Message: "Must be at most 100"},
	})

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 1)
}
