package models

import (
	"time"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// CredentialModel is the persistence model for the platform OAuth token pair.
// owner_id is unique so an owner has at most one row.
type CredentialModel struct {
	BaseModel
	OwnerID      string    `gorm:"type:varchar(128);not null;uniqueIndex"`
	AccessToken  string    `gorm:"type:text;not null"`
	RefreshToken string    `gorm:"type:text"`
	TokenType    string    `gorm:"type:varchar(32);not null;default:bearer"`
	ExpiresAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CredentialModel) TableName() string {
	return "platform_credentials"
}

// ToDomain converts the persistence model to a domain Credential
func (m *CredentialModel) ToDomain() *sourcing.Credential {
	return &sourcing.Credential{
		ID:           m.ID,
		OwnerID:      m.OwnerID,
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		TokenType:    m.TokenType,
		ExpiresAt:    m.ExpiresAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// CredentialModelFromDomain creates a persistence model from a domain Credential
func CredentialModelFromDomain(c *sourcing.Credential) *CredentialModel {
	return &CredentialModel{
		BaseModel: BaseModel{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		},
		OwnerID:      c.OwnerID,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		ExpiresAt:    c.ExpiresAt,
	}
}
