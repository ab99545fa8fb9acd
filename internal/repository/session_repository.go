package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/taxdesk/internal/domain"
)

const sessionKeyPrefix = "taxdesk:session:"

// SessionRepository persists sessions under the digest of their token.
type SessionRepository interface {
	Create(ctx context.Context, digest string, session *domain.Session) error
	Get(ctx context.Context, digest string) (*domain.Session, error)
	// Delete is idempotent: deleting an unknown digest is not an error.
	Delete(ctx context.Context, digest string) error
}

type sessionRecord struct {
	IdentityID string    `json:"identity_id"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type redisSessionRepository struct {
	client redis.UniversalClient
}

// NewRedisSessionRepository returns a Redis-backed implementation. Keys carry
// a TTL matching the session expiry so Redis evicts them on its own.
func NewRedisSessionRepository(client redis.UniversalClient) SessionRepository {
	return &redisSessionRepository{client: client}
}

func (r *redisSessionRepository) Create(ctx context.Context, digest string, session *domain.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	payload, err := json.Marshal(sessionRecord{
		IdentityID: session.IdentityID,
		IssuedAt:   session.IssuedAt,
		ExpiresAt:  session.ExpiresAt,
	})
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, sessionKeyPrefix+digest, payload, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicate
	}
	return nil
}

func (r *redisSessionRepository) Get(ctx context.Context, digest string) (*domain.Session, error) {
	payload, err := r.client.Get(ctx, sessionKeyPrefix+digest).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, err
	}
	return &domain.Session{
		IdentityID: record.IdentityID,
		IssuedAt:   record.IssuedAt,
		ExpiresAt:  record.ExpiresAt,
	}, nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, digest string) error {
	return r.client.Del(ctx, sessionKeyPrefix+digest).Err()
}
