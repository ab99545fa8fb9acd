package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/taxdesk/internal/domain"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// IdentityRepository defines persistence access for registered identities.
// Emails are matched case-insensitively.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	// UpdateSubscription changes the tier. It is an operator action with no
	// HTTP route.
	UpdateSubscription(ctx context.Context, id string, tier domain.SubscriptionType) error
}

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	const query = `
        INSERT INTO identities (id, email, password_hash, subscription_type)
        VALUES ($1, lower($2), $3, $4)
        RETURNING email, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		identity.ID,
		identity.Email,
		identity.PasswordHash,
		identity.SubscriptionType,
	).Scan(&identity.Email, &identity.CreatedAt, &identity.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	const query = `
        SELECT id, email, password_hash, subscription_type, created_at, updated_at
        FROM identities WHERE id=$1`

	return scanIdentity(r.pool.QueryRow(ctx, query, id))
}

// identityByEmailQuery matches the lower(email) unique index expression.
const identityByEmailQuery = `
        SELECT id, email, password_hash, subscription_type, created_at, updated_at
        FROM identities WHERE lower(email)=lower($1)`

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return scanIdentity(r.pool.QueryRow(ctx, identityByEmailQuery, email))
}

func (r *identityRepository) UpdateSubscription(ctx context.Context, id string, tier domain.SubscriptionType) error {
	const query = `
        UPDATE identities SET subscription_type=$1, updated_at=NOW()
        WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, tier, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var identity domain.Identity
	if err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.SubscriptionType,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &identity, nil
}
