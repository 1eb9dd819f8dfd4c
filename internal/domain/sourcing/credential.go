package sourcing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Credential is the OAuth token pair used for the platform's authenticated API.
// At most one credential exists per owner; saving an existing owner overwrites it.
type Credential struct {
	ID           uuid.UUID
	OwnerID      string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewCredential creates a credential that expires expiresIn after now.
func NewCredential(accessToken, refreshToken, tokenType string, expiresIn time.Duration, now time.Time) *Credential {
	if tokenType == "" {
		tokenType = "bearer"
	}
	return &Credential{
		ID:           uuid.New(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenType,
		ExpiresAt:    now.Add(expiresIn),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsValidAt returns true if the access token has not expired at t
func (c *Credential) IsValidAt(t time.Time) bool {
	return c.ExpiresAt.After(t)
}

// CanRefresh returns true if a refresh token is available
func (c *Credential) CanRefresh() bool {
	return c.RefreshToken != ""
}

// CredentialState is the lifecycle state of the platform authorization
type CredentialState string

const (
	CredentialStateUnauthorized CredentialState = "UNAUTHORIZED"
	CredentialStateValid        CredentialState = "AUTHORIZED_VALID"
	CredentialStateExpired      CredentialState = "AUTHORIZED_EXPIRED"
)

// StateAt derives the lifecycle state of an optional credential at t
func StateAt(c *Credential, t time.Time) CredentialState {
	switch {
	case c == nil:
		return CredentialStateUnauthorized
	case c.IsValidAt(t):
		return CredentialStateValid
	default:
		return CredentialStateExpired
	}
}

// CredentialRepository stores platform credentials.
type CredentialRepository interface {
	// LoadLatest returns the most recently updated credential, or ErrNoCredential.
	LoadLatest(ctx context.Context) (*Credential, error)
	// Save inserts the credential or overwrites the existing row for the same owner.
	Save(ctx context.Context, cred *Credential) error
	// RevokeAll deletes every stored credential.
	RevokeAll(ctx context.Context) error
}
