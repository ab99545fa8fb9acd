package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/taxdesk/internal/auth"
	"github.com/spec-kit/taxdesk/internal/domain"
	"github.com/spec-kit/taxdesk/internal/persistence"
	"github.com/spec-kit/taxdesk/internal/repository"
	apperrors "github.com/spec-kit/taxdesk/pkg/util"
)

const maxPasswordBytes = 256

var errBadCredentials = apperrors.NewUnauthorized("invalid email or password")

// CredentialService registers identities and verifies their passwords.
type CredentialService struct {
	identities  repository.IdentityRepository
	hasher      *auth.PasswordHasher
	guard       *persistence.Guard
	defaultTier domain.SubscriptionType
	logger      *zap.Logger
}

// CredentialDependencies encapsulates what the credential service needs.
type CredentialDependencies struct {
	Identities  repository.IdentityRepository
	Hasher      *auth.PasswordHasher
	Guard       *persistence.Guard
	DefaultTier domain.SubscriptionType
	Logger      *zap.Logger
}

// NewCredentialService builds the service.
func NewCredentialService(deps CredentialDependencies) *CredentialService {
	tier := deps.DefaultTier
	if !tier.Valid() {
		tier = domain.SubscriptionFree
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialService{
		identities:  deps.Identities,
		hasher:      deps.Hasher,
		guard:       deps.Guard,
		defaultTier: tier,
		logger:      logger,
	}
}

// Register creates an identity. The email must be unused, compared
// case-insensitively.
func (s *CredentialService) Register(ctx context.Context, email, password string) (*domain.Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	if _, err := s.lookupByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storageFailure(err)
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, hashFailure(ctx, err)
	}

	identity := &domain.Identity{
		ID:               uuid.NewString(),
		Email:            email,
		PasswordHash:     hash,
		SubscriptionType: s.defaultTier,
	}
	attempt := 0
	err = s.guard.Do(ctx, func(ctx context.Context) error {
		attempt++
		err := s.identities.Create(ctx, identity)
		if attempt > 1 && errors.Is(err, repository.ErrDuplicate) {
			// an earlier attempt may have committed before its reply was lost
			return s.confirmCreated(ctx, identity)
		}
		return err
	})
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return nil, apperrors.NewConflict("email already registered", nil)
	case err != nil:
		return nil, storageFailure(err)
	}

	s.logger.Info("identity registered", zap.String("identity_id", identity.ID))
	return identity, nil
}

// Verify checks a password. Unknown emails and wrong passwords fail alike,
// in about the same time.
func (s *CredentialService) Verify(ctx context.Context, email, password string) (*domain.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" || len(password) > maxPasswordBytes {
		return nil, errBadCredentials
	}

	identity, err := s.lookupByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		if err := s.hasher.CompareDummy(ctx, password); !errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, hashFailure(ctx, err)
		}
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, storageFailure(err)
	}

	if err := s.hasher.Compare(ctx, identity.PasswordHash, password); err != nil {
		if ctx.Err() != nil {
			return nil, hashFailure(ctx, err)
		}
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash unreadable", zap.String("identity_id", identity.ID), zap.Error(err))
		}
		return nil, errBadCredentials
	}
	return identity, nil
}

// Get loads an identity by id.
func (s *CredentialService) Get(ctx context.Context, id string) (*domain.Identity, error) {
	var identity *domain.Identity
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		identity, err = s.identities.GetByID(ctx, id)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("identity", nil)
	}
	if err != nil {
		return nil, storageFailure(err)
	}
	return identity, nil
}

// SetSubscription changes an identity's tier, looked up by email.
func (s *CredentialService) SetSubscription(ctx context.Context, email string, tier domain.SubscriptionType) (*domain.Identity, error) {
	if !tier.Valid() {
		return nil, apperrors.NewValidationError("unknown subscription type", map[string]any{"subscriptionType": tier})
	}
	identity, err := s.lookupByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("identity", nil)
	}
	if err != nil {
		return nil, storageFailure(err)
	}

	err = s.guard.Do(ctx, func(ctx context.Context) error {
		return s.identities.UpdateSubscription(ctx, identity.ID, tier)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("identity", nil)
	}
	if err != nil {
		return nil, storageFailure(err)
	}
	identity.SubscriptionType = tier
	return identity, nil
}

// confirmCreated reports whether the row holding identity's email is
// identity itself, returning ErrDuplicate when someone else owns it.
func (s *CredentialService) confirmCreated(ctx context.Context, identity *domain.Identity) error {
	found, err := s.identities.GetByEmail(ctx, identity.Email)
	if err != nil {
		return err
	}
	if found.ID != identity.ID {
		return repository.ErrDuplicate
	}
	return nil
}

func (s *CredentialService) lookupByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	var identity *domain.Identity
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		identity, err = s.identities.GetByEmail(ctx, email)
		return err
	})
	return identity, err
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperrors.NewValidationError("email is required", nil)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.NewValidationError("email is not a valid address", nil)
	}
	return email, nil
}

func validatePassword(password string) error {
	switch {
	case password == "":
		return apperrors.NewValidationError("password is required", nil)
	case len(password) > maxPasswordBytes:
		return apperrors.NewValidationError("password is too long", map[string]any{"maxBytes": maxPasswordBytes})
	}
	return nil
}
