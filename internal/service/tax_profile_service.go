package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/taxdesk/internal/domain"
	"github.com/spec-kit/taxdesk/internal/persistence"
	"github.com/spec-kit/taxdesk/internal/repository"
	"github.com/spec-kit/taxdesk/internal/tax"
	apperrors "github.com/spec-kit/taxdesk/pkg/util"
)

// TaxProfileService computes and stores the single tax profile each identity
// owns. Writes for one identity are serialized; reads never block each other.
type TaxProfileService struct {
	profiles    repository.TaxProfileRepository
	credentials *CredentialService
	engine      *tax.Engine
	guard       *persistence.Guard
	locks       *keyedMutex
	logger      *zap.Logger
}

// NewTaxProfileService builds the service.
func NewTaxProfileService(profiles repository.TaxProfileRepository, credentials *CredentialService, engine *tax.Engine, guard *persistence.Guard, logger *zap.Logger) *TaxProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaxProfileService{
		profiles:    profiles,
		credentials: credentials,
		engine:      engine,
		guard:       guard,
		locks:       newKeyedMutex(),
		logger:      logger,
	}
}

// Get returns the stored profile, or a NOT_FOUND DomainError on first visit.
// A profile computed for a tier the identity no longer has is recomputed and
// saved before it is returned.
func (s *TaxProfileService) Get(ctx context.Context, identityID string) (*domain.TaxProfile, error) {
	profile, err := s.load(ctx, identityID)
	if err != nil {
		return nil, err
	}
	identity, err := s.credentials.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if profile.SubscriptionType == identity.SubscriptionType {
		return profile, nil
	}

	unlock := s.locks.Lock(identityID)
	defer unlock()

	// re-read under the lock; a writer may have refreshed it already
	profile, err = s.load(ctx, identityID)
	if err != nil {
		return nil, err
	}
	identity, err = s.credentials.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if profile.SubscriptionType == identity.SubscriptionType {
		return profile, nil
	}

	s.logger.Info("recomputing tax profile for changed tier",
		zap.String("identity_id", identityID),
		zap.String("from", string(profile.SubscriptionType)),
		zap.String("to", string(identity.SubscriptionType)),
	)
	return s.computeAndSave(ctx, identity, profile.IncomeCents, profile.DeductionsCents)
}

// Upsert is UpsertCents for decimal amounts.
func (s *TaxProfileService) Upsert(ctx context.Context, identityID string, income, deductions float64) (*domain.TaxProfile, error) {
	incomeCents, err := tax.FromFloat(income)
	if err != nil {
		return nil, amountError("income", err)
	}
	deductionsCents, err := tax.FromFloat(deductions)
	if err != nil {
		return nil, amountError("deductions", err)
	}
	return s.UpsertCents(ctx, identityID, incomeCents, deductionsCents)
}

// UpsertCents validates the amounts, computes the tax for the identity's
// current tier and replaces the stored profile.
func (s *TaxProfileService) UpsertCents(ctx context.Context, identityID string, incomeCents, deductionsCents int64) (*domain.TaxProfile, error) {
	if err := validateCents("income", incomeCents); err != nil {
		return nil, err
	}
	if err := validateCents("deductions", deductionsCents); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(identityID)
	defer unlock()

	identity, err := s.credentials.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return s.computeAndSave(ctx, identity, incomeCents, deductionsCents)
}

// computeAndSave must run with the identity lock held.
func (s *TaxProfileService) computeAndSave(ctx context.Context, identity *domain.Identity, incomeCents, deductionsCents int64) (*domain.TaxProfile, error) {
	owed, err := s.engine.ComputeCents(incomeCents, deductionsCents, identity.SubscriptionType)
	if err != nil {
		if errors.Is(err, tax.ErrUnknownTier) {
			return nil, apperrors.NewInternalError(err)
		}
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}

	profile := &domain.TaxProfile{
		IdentityID:         identity.ID,
		IncomeCents:        incomeCents,
		DeductionsCents:    deductionsCents,
		TaxCalculatedCents: owed,
		SubscriptionType:   identity.SubscriptionType,
	}
	err = s.guard.Do(ctx, func(ctx context.Context) error {
		return s.profiles.Save(ctx, profile)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("identity", nil)
	}
	if err != nil {
		return nil, storageFailure(err)
	}
	return profile, nil
}

func (s *TaxProfileService) load(ctx context.Context, identityID string) (*domain.TaxProfile, error) {
	var profile *domain.TaxProfile
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		profile, err = s.profiles.Get(ctx, identityID)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("tax profile", nil)
	}
	if err != nil {
		return nil, storageFailure(err)
	}
	return profile, nil
}

func validateCents(field string, cents int64) error {
	switch {
	case cents < 0:
		return amountError(field, tax.ErrNegativeAmount)
	case cents > tax.MaxAmountCents:
		return amountError(field, tax.ErrAmountTooLarge)
	}
	return nil
}

func amountError(field string, err error) error {
	return apperrors.NewValidationError(field+": "+err.Error(), map[string]any{"field": field})
}
