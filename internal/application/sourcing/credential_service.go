package sourcing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sourcing/backend/internal/domain/sourcing"
	"github.com/sourcing/backend/internal/infrastructure/telemetry"
)

// TokenExchanger talks to the platform's OAuth endpoints
type TokenExchanger interface {
	AuthorizeURL(state string) string
	Exchange(ctx context.Context, code string) (*sourcing.Credential, error)
	Refresh(ctx context.Context, refreshToken string) (*sourcing.Credential, error)
}

// CredentialServiceConfig configures the OAuth state token
type CredentialServiceConfig struct {
	StateSecret string
	StateTTL    time.Duration
	Issuer      string
}

const (
	defaultStateTTL  = 10 * time.Minute
	minSecretLength  = 16
	refreshFlightKey = "refresh"
)

// oauthStateClaims is carried through the consent redirect in the state parameter
type oauthStateClaims struct {
	RedirectTarget string `json:"rt"`
	jwt.RegisteredClaims
}

// CredentialService keeps a valid platform access token available.
// Refresh is read-then-refresh-then-persist; concurrent refreshes inside one
// process share a single call, across processes the last write wins.
type CredentialService struct {
	repo      sourcing.CredentialRepository
	exchanger TokenExchanger
	secret    []byte
	stateTTL  time.Duration
	issuer    string
	now       func() time.Time
	refreshes singleflight.Group
	metrics   *telemetry.SourcingMetrics
	logger    *zap.Logger
}

// NewCredentialService creates a new CredentialService
func NewCredentialService(
	repo sourcing.CredentialRepository,
	exchanger TokenExchanger,
	cfg CredentialServiceConfig,
	metrics *telemetry.SourcingMetrics,
	logger *zap.Logger,
) (*CredentialService, error) {
	if repo == nil || exchanger == nil {
		return nil, errors.New("sourcing: credential repository and token exchanger are required")
	}
	if len(cfg.StateSecret) < minSecretLength {
		return nil, fmt.Errorf("sourcing: oauth state secret must be at least %d characters", minSecretLength)
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = defaultStateTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "sourcing-backend"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialService{
		repo:      repo,
		exchanger: exchanger,
		secret:    []byte(cfg.StateSecret),
		stateTTL:  cfg.StateTTL,
		issuer:    cfg.Issuer,
		now:       time.Now,
		metrics:   metrics,
		logger:    logger.Named("credentials"),
	}, nil
}

// SetClock replaces the clock used for expiry checks
func (s *CredentialService) SetClock(now func() time.Time) {
	s.now = now
}

// ---------------------------------------------------------------------------
// Authorization
// ---------------------------------------------------------------------------

// AuthorizeURL returns the consent URL. The redirect target is where the
// resource owner lands after the callback; only same-site paths are kept.
func (s *CredentialService) AuthorizeURL(redirectTarget string) (string, error) {
	now := s.now()
	claims := oauthStateClaims{
		RedirectTarget: sanitizeRedirect(redirectTarget),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.stateTTL)),
		},
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sourcing: failed to sign oauth state: %w", err)
	}
	return s.exchanger.AuthorizeURL(state), nil
}

// VerifyState validates the state returned to the callback and yields its redirect target
func (s *CredentialService) VerifyState(state string) (string, error) {
	claims := &oauthStateClaims{}
	_, err := jwt.ParseWithClaims(state, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", sourcing.ErrInvalidState, err)
	}
	return claims.RedirectTarget, nil
}

// sanitizeRedirect keeps relative same-site paths and replaces anything else with "/"
func sanitizeRedirect(target string) string {
	target = strings.TrimSpace(target)
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return "/"
	}
	return target
}

// ---------------------------------------------------------------------------
// Token lifecycle
// ---------------------------------------------------------------------------

// Exchange trades an authorization code for a credential and persists it
func (s *CredentialService) Exchange(ctx context.Context, code string) (*sourcing.Credential, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credentials", "exchange")
	defer span.End()

	cred, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.repo.Save(ctx, cred); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}

	s.logger.Info("Platform authorized",
		zap.String("owner_id", cred.OwnerID),
		zap.Time("expires_at", cred.ExpiresAt),
	)
	return cred, nil
}

// Refresh trades a refresh token for a new credential and persists it
func (s *CredentialService) Refresh(ctx context.Context, refreshToken string) (*sourcing.Credential, error) {
	var ownerID string
	if latest, err := s.repo.LoadLatest(ctx); err == nil && latest.RefreshToken == refreshToken {
		ownerID = latest.OwnerID
	}
	return s.refresh(ctx, refreshToken, ownerID)
}

func (s *CredentialService) refresh(ctx context.Context, refreshToken, ownerID string) (*sourcing.Credential, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "credentials", "refresh")
	defer span.End()

	cred, err := s.exchanger.Refresh(ctx, refreshToken)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordTokenRefresh(ctx, telemetry.OutcomeFailure)
		return nil, err
	}
	if cred.OwnerID == "" {
		cred.OwnerID = ownerID
	}
	if err := s.repo.Save(ctx, cred); err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordTokenRefresh(ctx, telemetry.OutcomeFailure)
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}

	s.metrics.RecordTokenRefresh(ctx, telemetry.OutcomeSuccess)
	s.logger.Info("Platform token refreshed", zap.Time("expires_at", cred.ExpiresAt))
	return cred, nil
}

// GetValidToken returns an unexpired access token, refreshing and persisting
// a new credential first when the stored one has expired.
func (s *CredentialService) GetValidToken(ctx context.Context) (string, error) {
	cred, err := s.repo.LoadLatest(ctx)
	if err != nil {
		return "", err
	}
	if cred.IsValidAt(s.now()) {
		return cred.AccessToken, nil
	}
	if !cred.CanRefresh() {
		return "", sourcing.ErrRefreshUnavailable
	}

	v, err, shared := s.refreshes.Do(refreshFlightKey, func() (any, error) {
		// another caller may have refreshed since the first load
		latest, err := s.repo.LoadLatest(ctx)
		if err == nil {
			if latest.IsValidAt(s.now()) {
				return latest, nil
			}
			if latest.CanRefresh() {
				cred = latest
			}
		}
		return s.refresh(ctx, cred.RefreshToken, cred.OwnerID)
	})
	if err != nil {
		return "", err
	}
	if shared {
		s.logger.Debug("Joined in-flight token refresh")
	}
	return v.(*sourcing.Credential).AccessToken, nil
}

// RevokeAll deletes every stored credential
func (s *CredentialService) RevokeAll(ctx context.Context) error {
	if err := s.repo.RevokeAll(ctx); err != nil {
		return fmt.Errorf("failed to revoke credentials: %w", err)
	}
	s.logger.Info("Platform credentials revoked")
	return nil
}

// CredentialStatus describes the current authorization state
type CredentialStatus struct {
	State     sourcing.CredentialState
	OwnerID   string
	ExpiresAt *time.Time
}

// Status reports the authorization state without refreshing
func (s *CredentialService) Status(ctx context.Context) (*CredentialStatus, error) {
	cred, err := s.repo.LoadLatest(ctx)
	if errors.Is(err, sourcing.ErrNoCredential) {
		return &CredentialStatus{State: sourcing.CredentialStateUnauthorized}, nil
	}
	if err != nil {
		return nil, err
	}
	expiresAt := cred.ExpiresAt
	return &CredentialStatus{
		State:     sourcing.StateAt(cred, s.now()),
		OwnerID:   cred.OwnerID,
		ExpiresAt: &expiresAt,
	}, nil
}
