package dto

import (
	"errors"
	"net/http"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// General error codes
const (
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeRequestTooLarge    = "REQUEST_TOO_LARGE"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Sourcing error codes
const (
	ErrCodeCredentialRequired  = "CREDENTIAL_REQUIRED"
	ErrCodeAuthExchangeFailed  = "AUTH_EXCHANGE_FAILED"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeImportFailed        = "IMPORT_FAILED"
	ErrCodeUnsupportedPlatform = "UNSUPPORTED_PLATFORM"
	ErrCodeInvalidReference    = "INVALID_REFERENCE"
	ErrCodePlatformError       = "PLATFORM_ERROR"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeRateLimited:        http.StatusTooManyRequests,
	ErrCodeRequestTooLarge:    http.StatusRequestEntityTooLarge,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,

	ErrCodeCredentialRequired:  http.StatusConflict,
	ErrCodeAuthExchangeFailed:  http.StatusBadGateway,
	ErrCodeInvalidState:        http.StatusBadRequest,
	ErrCodeImportFailed:        http.StatusUnprocessableEntity,
	ErrCodeUnsupportedPlatform: http.StatusBadRequest,
	ErrCodeInvalidReference:    http.StatusBadRequest,
	ErrCodePlatformError:       http.StatusBadGateway,
	ErrCodeUpstreamUnavailable: http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorCodeFor classifies a service error. The message is safe to return to
// clients; internal failures get a generic one.
func ErrorCodeFor(err error) (code, message string) {
	var (
		authErr      *sourcing.AuthExchangeError
		platformErr  *sourcing.PlatformApplicationError
		transportErr *sourcing.TransportError
	)
	switch {
	// import failures keep their own code whatever the underlying cause
	case errors.Is(err, sourcing.ErrImportFailed):
		return ErrCodeImportFailed, err.Error()
	case errors.Is(err, sourcing.ErrNoCredential), errors.Is(err, sourcing.ErrRefreshUnavailable):
		return ErrCodeCredentialRequired, "platform authorization required"
	case errors.As(err, &authErr):
		return ErrCodeAuthExchangeFailed, authErr.Error()
	case errors.Is(err, sourcing.ErrInvalidState):
		return ErrCodeInvalidState, "invalid or expired authorization state"
	case errors.Is(err, sourcing.ErrUnsupportedPlatform):
		return ErrCodeUnsupportedPlatform, err.Error()
	case errors.Is(err, sourcing.ErrInvalidReference):
		return ErrCodeInvalidReference, err.Error()
	case errors.Is(err, sourcing.ErrInvalidSearchRequest):
		return ErrCodeValidation, err.Error()
	case errors.As(err, &platformErr):
		return ErrCodePlatformError, platformErr.Error()
	case errors.As(err, &transportErr):
		return ErrCodeUpstreamUnavailable, "source platform unavailable"
	default:
		return ErrCodeInternal, "an unexpected error occurred"
	}
}
