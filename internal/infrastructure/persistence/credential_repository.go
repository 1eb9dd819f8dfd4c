package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sourcing/backend/internal/domain/sourcing"
	"github.com/sourcing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCredentialRepository implements sourcing.CredentialRepository using GORM
type GormCredentialRepository struct {
	db *gorm.DB
}

// NewGormCredentialRepository creates a new GormCredentialRepository
func NewGormCredentialRepository(db *gorm.DB) *GormCredentialRepository {
	return &GormCredentialRepository{db: db}
}

// LoadLatest returns the most recently updated credential
func (r *GormCredentialRepository) LoadLatest(ctx context.Context) (*sourcing.Credential, error) {
	var model models.CredentialModel
	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sourcing.ErrNoCredential
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return model.ToDomain(), nil
}

// Save inserts the credential or overwrites the row of the same owner in one
// statement, so concurrent saves for one owner never produce two rows.
func (r *GormCredentialRepository) Save(ctx context.Context, cred *sourcing.Credential) error {
	model := models.CredentialModelFromDomain(cred)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"access_token", "refresh_token", "token_type", "expires_at", "updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// RevokeAll deletes every stored credential
func (r *GormCredentialRepository) RevokeAll(ctx context.Context) error {
	err := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.CredentialModel{}).Error
	if err != nil {
		return fmt.Errorf("revoke credentials: %w", err)
	}
	return nil
}

// InMemoryCredentialRepository keeps credentials in process memory. It is
// used for local runs without a database; tokens are lost on restart.
type InMemoryCredentialRepository struct {
	mu      sync.RWMutex
	byOwner map[string]sourcing.Credential
}

// NewInMemoryCredentialRepository creates an empty in-memory repository
func NewInMemoryCredentialRepository() *InMemoryCredentialRepository {
	return &InMemoryCredentialRepository{byOwner: make(map[string]sourcing.Credential)}
}

// LoadLatest returns the most recently updated credential
func (r *InMemoryCredentialRepository) LoadLatest(_ context.Context) (*sourcing.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *sourcing.Credential
	for _, c := range r.byOwner {
		if latest == nil || c.UpdatedAt.After(latest.UpdatedAt) {
			latest = &c
		}
	}
	if latest == nil {
		return nil, sourcing.ErrNoCredential
	}
	out := *latest
	return &out, nil
}

// Save stores a copy of cred, replacing the entry of the same owner
func (r *InMemoryCredentialRepository) Save(_ context.Context, cred *sourcing.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *cred
	if existing, ok := r.byOwner[cred.OwnerID]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	}
	r.byOwner[cred.OwnerID] = stored
	return nil
}

// RevokeAll deletes every stored credential
func (r *InMemoryCredentialRepository) RevokeAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.byOwner)
	return nil
}

var (
	_ sourcing.CredentialRepository = (*GormCredentialRepository)(nil)
	_ sourcing.CredentialRepository = (*InMemoryCredentialRepository)(nil)
)
