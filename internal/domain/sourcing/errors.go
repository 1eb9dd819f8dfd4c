package sourcing

import (
	"errors"
	"fmt"
	"net/http"
)

// ---------------------------------------------------------------------------
// Sourcing Errors
// ---------------------------------------------------------------------------

var (
	// Credential lifecycle errors
	ErrNoCredential       = errors.New("sourcing: no platform credential stored")
	ErrRefreshUnavailable = errors.New("sourcing: stored credential has no refresh token")
	ErrInvalidState       = errors.New("sourcing: invalid or expired oauth state")

	// Retrieval errors
	ErrExtractionFailed    = errors.New("sourcing: no extraction strategy produced a record")
	ErrImportFailed        = errors.New("sourcing: could not retrieve product")
	ErrUnsupportedPlatform = errors.New("sourcing: unsupported source platform")
	ErrInvalidResponse     = errors.New("sourcing: invalid platform response")
	ErrInvalidReference    = errors.New("sourcing: reference must be a product URL or numeric product id")

	// Request errors
	ErrInvalidSearchRequest = errors.New("sourcing: invalid search request")
	ErrInvalidDraft         = errors.New("sourcing: invalid product draft")
)

// AuthExchangeError is returned when the token endpoint rejects an
// authorization-code or refresh-token exchange.
type AuthExchangeError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *AuthExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("sourcing: token exchange failed (status %d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("sourcing: token exchange failed (status %d): %s", e.StatusCode, e.Message)
}

// TransportError wraps network and HTTP-layer failures.
// StatusCode is zero when no response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sourcing: %s: http status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("sourcing: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth another attempt:
// connection failures, rate limiting and server errors.
func (e *TransportError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// PlatformApplicationError is a structured error payload returned by the platform.
// It is never retried.
type PlatformApplicationError struct {
	Code      string
	SubCode   string
	Message   string
	RequestID string
}

func (e *PlatformApplicationError) Error() string {
	msg := fmt.Sprintf("sourcing: platform error %s: %s", e.Code, e.Message)
	if e.SubCode != "" {
		msg += " (" + e.SubCode + ")"
	}
	return msg
}

// IsRetryable reports whether err is a retryable transport failure.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	return false
}

// IsCredentialError reports whether err requires re-authorization before any
// authenticated call can succeed.
func IsCredentialError(err error) bool {
	var ae *AuthExchangeError
	return errors.Is(err, ErrNoCredential) || errors.Is(err, ErrRefreshUnavailable) || errors.As(err, &ae)
}
