package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/taxdesk/internal/auth"
	"github.com/spec-kit/taxdesk/internal/domain"
	"github.com/spec-kit/taxdesk/internal/persistence"
	"github.com/spec-kit/taxdesk/internal/repository"
	apperrors "github.com/spec-kit/taxdesk/pkg/util"
)

var errInvalidSession = apperrors.NewUnauthorized("invalid or expired token")

// SessionService issues, resolves and revokes bearer sessions.
type SessionService struct {
	sessions    repository.SessionRepository
	credentials *CredentialService
	guard       *persistence.Guard
	ttl         time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewSessionService builds the service.
func NewSessionService(sessions repository.SessionRepository, credentials *CredentialService, guard *persistence.Guard, ttl time.Duration, logger *zap.Logger) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions:    sessions,
		credentials: credentials,
		guard:       guard,
		ttl:         ttl,
		now:         time.Now,
		logger:      logger,
	}
}

// Issue creates and stores a session for identity.
func (s *SessionService) Issue(ctx context.Context, identity *domain.Identity) (*domain.Session, error) {
	token, err := auth.NewToken()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	issuedAt := s.now().UTC()
	session := &domain.Session{
		Token:      token,
		IdentityID: identity.ID,
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(s.ttl),
	}

	digest := auth.TokenDigest(token)
	attempt := 0
	err = s.guard.Do(ctx, func(ctx context.Context) error {
		attempt++
		err := s.sessions.Create(ctx, digest, session)
		if attempt > 1 && errors.Is(err, repository.ErrDuplicate) {
			// digests are unique per token, so the earlier attempt stored it
			return nil
		}
		return err
	})
	if err != nil {
		return nil, storageFailure(err)
	}
	return session, nil
}

// Resolve returns the identity owning token. Expired sessions are deleted
// here rather than by a background sweep.
func (s *SessionService) Resolve(ctx context.Context, token string) (*domain.Identity, error) {
	if err := auth.ValidateToken(token); err != nil {
		return nil, errInvalidSession
	}
	digest := auth.TokenDigest(token)

	var session *domain.Session
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.sessions.Get(ctx, digest)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errInvalidSession
	}
	if err != nil {
		return nil, storageFailure(err)
	}

	if session.Expired(s.now()) {
		err := s.guard.Do(ctx, func(ctx context.Context) error {
			return s.sessions.Delete(ctx, digest)
		})
		if err != nil {
			s.logger.Warn("evict expired session", zap.Error(err))
		}
		return nil, errInvalidSession
	}

	identity, err := s.credentials.Get(ctx, session.IdentityID)
	if apperrors.IsKind(err, apperrors.CodeNotFound) {
		return nil, errInvalidSession
	}
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// Revoke deletes the session for token. Unknown tokens are ignored.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if auth.ValidateToken(token) != nil {
		return nil
	}
	digest := auth.TokenDigest(token)
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		return s.sessions.Delete(ctx, digest)
	})
	if err != nil {
		return storageFailure(err)
	}
	return nil
}
