package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

const (
	credentialKeyPrefix = keyPrefix + "credential:"
	// credentialIndexKey is a sorted set of owner IDs scored by update time
	credentialIndexKey = keyPrefix + "credentials"
)

type credentialRecord struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      string    `json:"owner_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r *credentialRecord) toDomain() *sourcing.Credential {
	return &sourcing.Credential{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresAt:    r.ExpiresAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// RedisCredentialRepository stores one credential per owner in Redis and
// keeps an update-time index for LoadLatest.
type RedisCredentialRepository struct {
	client *redis.Client
}

// NewRedisCredentialRepository creates a repository on a shared client
func NewRedisCredentialRepository(client *redis.Client) *RedisCredentialRepository {
	return &RedisCredentialRepository{client: client}
}

func credentialKey(ownerID string) string {
	return credentialKeyPrefix + ownerID
}

// LoadLatest implements sourcing.CredentialRepository
func (r *RedisCredentialRepository) LoadLatest(ctx context.Context) (*sourcing.Credential, error) {
	owners, err := r.client.ZRevRange(ctx, credentialIndexKey, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if len(owners) == 0 {
		return nil, sourcing.ErrNoCredential
	}

	rec, err := r.get(ctx, owners[0])
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if rec == nil {
		return nil, sourcing.ErrNoCredential
	}
	return rec.toDomain(), nil
}

// Save implements sourcing.CredentialRepository. An existing owner keeps its
// ID and creation time.
func (r *RedisCredentialRepository) Save(ctx context.Context, cred *sourcing.Credential) error {
	rec := credentialRecord{
		ID:           cred.ID,
		OwnerID:      cred.OwnerID,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.TokenType,
		ExpiresAt:    cred.ExpiresAt.UTC(),
		CreatedAt:    cred.CreatedAt.UTC(),
		UpdatedAt:    cred.UpdatedAt.UTC(),
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	existing, err := r.get(ctx, cred.OwnerID)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	if existing != nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, credentialKey(rec.OwnerID), data, 0)
		pipe.ZAdd(ctx, credentialIndexKey, redis.Z{
			Score:  float64(rec.UpdatedAt.UnixMilli()),
			Member: rec.OwnerID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// RevokeAll implements sourcing.CredentialRepository
func (r *RedisCredentialRepository) RevokeAll(ctx context.Context) error {
	owners, err := r.client.ZRange(ctx, credentialIndexKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("revoke credentials: %w", err)
	}

	keys := make([]string, 0, len(owners)+1)
	for _, owner := range owners {
		keys = append(keys, credentialKey(owner))
	}
	keys = append(keys, credentialIndexKey)

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke credentials: %w", err)
	}
	return nil
}

func (r *RedisCredentialRepository) get(ctx context.Context, ownerID string) (*credentialRecord, error) {
	data, err := r.client.Get(ctx, credentialKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec credentialRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode credential %q: %w", ownerID, err)
	}
	return &rec, nil
}

var _ sourcing.CredentialRepository = (*RedisCredentialRepository)(nil)
