package service

import (
	"context"

	"github.com/spec-kit/taxdesk/internal/domain"
)

// AuthService coordinates registration, login and logout flows on top of
// the credential store and the session issuer.
type AuthService struct {
	credentials *CredentialService
	sessions    *SessionService
}

// NewAuthService builds the service.
func NewAuthService(credentials *CredentialService, sessions *SessionService) *AuthService {
	return &AuthService{credentials: credentials, sessions: sessions}
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.Identity, *domain.Session, error) {
	identity, err := s.credentials.Register(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.sessions.Issue(ctx, identity)
	if err != nil {
		return nil, nil, err
	}
	return identity, session, nil
}

// Login verifies credentials and opens a new session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Identity, *domain.Session, error) {
	identity, err := s.credentials.Verify(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.sessions.Issue(ctx, identity)
	if err != nil {
		return nil, nil, err
	}
	return identity, session, nil
}

// Logout revokes the session behind token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// Sessions exposes the session issuer for middleware usage.
func (s *AuthService) Sessions() *SessionService {
	return s.sessions
}
