package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/taxdesk/internal/domain"
)

// TaxProfileRepository stores at most one profile per identity.
type TaxProfileRepository interface {
	Get(ctx context.Context, identityID string) (*domain.TaxProfile, error)
	// Save replaces the identity's profile in a single atomic write.
	Save(ctx context.Context, profile *domain.TaxProfile) error
}

type taxProfileRepository struct {
	pool *pgxpool.Pool
}

// NewTaxProfileRepository returns a Postgres-backed implementation.
func NewTaxProfileRepository(pool *pgxpool.Pool) TaxProfileRepository {
	return &taxProfileRepository{pool: pool}
}

func (r *taxProfileRepository) Get(ctx context.Context, identityID string) (*domain.TaxProfile, error) {
	const query = `
        SELECT identity_id, income_cents, deductions_cents, tax_calculated_cents, subscription_type, updated_at
        FROM tax_profiles WHERE identity_id=$1`

	var profile domain.TaxProfile
	if err := r.pool.QueryRow(ctx, query, identityID).Scan(
		&profile.IdentityID,
		&profile.IncomeCents,
		&profile.DeductionsCents,
		&profile.TaxCalculatedCents,
		&profile.SubscriptionType,
		&profile.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *taxProfileRepository) Save(ctx context.Context, profile *domain.TaxProfile) error {
	const query = `
        INSERT INTO tax_profiles (identity_id, income_cents, deductions_cents, tax_calculated_cents, subscription_type)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (identity_id) DO UPDATE
        SET income_cents=EXCLUDED.income_cents,
            deductions_cents=EXCLUDED.deductions_cents,
            tax_calculated_cents=EXCLUDED.tax_calculated_cents,
            subscription_type=EXCLUDED.subscription_type,
            updated_at=NOW()
        RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		profile.IdentityID,
		profile.IncomeCents,
		profile.DeductionsCents,
		profile.TaxCalculatedCents,
		profile.SubscriptionType,
	).Scan(&profile.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ErrNotFound
	}
	return err
}
