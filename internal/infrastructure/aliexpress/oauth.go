package aliexpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// DefaultTokenLifetime applies when the token endpoint omits expires_in
const DefaultTokenLifetime = time.Hour

// Grant types for the token endpoint
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// OAuthClient builds consent URLs and exchanges codes and refresh tokens
type OAuthClient struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewOAuthClient creates a new OAuth client
func NewOAuthClient(config *Config, logger *zap.Logger) (*OAuthClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthClient{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger.Named("aliexpress.oauth"),
		now:    time.Now,
	}, nil
}

// SetHTTPClient replaces the HTTP client, mainly for tests
func (c *OAuthClient) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// SetClock replaces the clock used to compute expiry
func (c *OAuthClient) SetClock(now func() time.Time) {
	c.now = now
}

// AuthorizeURL returns the consent page URL for the given state
func (c *OAuthClient) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.config.AppKey)
	q.Set("redirect_uri", c.config.RedirectURI)
	q.Set("force_auth", "true")
	q.Set("state", state)

	sep := "?"
	if strings.Contains(c.config.AuthorizeURL, "?") {
		sep = "&"
	}
	return c.config.AuthorizeURL + sep + q.Encode()
}

// Exchange trades an authorization code for a token pair
func (c *OAuthClient) Exchange(ctx context.Context, code string) (*sourcing.Credential, error) {
	if code == "" {
		return nil, &sourcing.AuthExchangeError{Message: "authorization code is empty"}
	}
	form := url.Values{}
	form.Set("grant_type", GrantAuthorizationCode)
	form.Set("code", code)
	form.Set("redirect_uri", c.config.RedirectURI)
	return c.requestToken(ctx, form, "")
}

// Refresh trades a refresh token for a new token pair.
// When the response omits a new refresh token, the old one is kept.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*sourcing.Credential, error) {
	if refreshToken == "" {
		return nil, sourcing.ErrRefreshUnavailable
	}
	form := url.Values{}
	form.Set("grant_type", GrantRefreshToken)
	form.Set("refresh_token", refreshToken)
	return c.requestToken(ctx, form, refreshToken)
}

func (c *OAuthClient) requestToken(ctx context.Context, form url.Values, previousRefresh string) (*sourcing.Credential, error) {
	form.Set("app_key", c.config.AppKey)
	form.Set("app_secret", c.config.AppSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("aliexpress: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &sourcing.TransportError{Op: "token " + form.Get("grant_type"), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &sourcing.TransportError{Op: "token " + form.Get("grant_type"), Err: err}
	}

	var tr tokenResponse
	decodeErr := json.Unmarshal(body, &tr)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		exErr := &sourcing.AuthExchangeError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if decodeErr == nil {
			if code, msg, ok := tr.embeddedError(); ok {
				exErr.Code, exErr.Message = code, msg
			}
		}
		return nil, exErr
	}
	if decodeErr != nil {
		return nil, &sourcing.AuthExchangeError{StatusCode: resp.StatusCode, Message: "invalid token response: " + decodeErr.Error()}
	}
	if code, msg, ok := tr.embeddedError(); ok {
		return nil, &sourcing.AuthExchangeError{StatusCode: resp.StatusCode, Code: code, Message: msg}
	}

	lifetime := DefaultTokenLifetime
	if secs, ok := tr.ExpiresIn.Int64(); ok && secs > 0 {
		lifetime = time.Duration(secs) * time.Second
	}
	refresh := tr.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}

	cred := sourcing.NewCredential(tr.AccessToken, refresh, tr.TokenType, lifetime, c.now())
	cred.OwnerID = tr.UserID.String()

	c.logger.Info("Platform token issued",
		zap.String("grant_type", form.Get("grant_type")),
		zap.String("owner_id", cred.OwnerID),
		zap.Time("expires_at", cred.ExpiresAt),
	)
	return cred, nil
}
