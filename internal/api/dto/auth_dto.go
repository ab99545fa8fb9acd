package dto

import (
	"time"

	"github.com/spec-kit/taxdesk/internal/domain"
)

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token            string                  `json:"token"`
	Email            string                  `json:"email"`
	SubscriptionType domain.SubscriptionType `json:"subscriptionType"`
	ExpiresAt        time.Time               `json:"expiresAt"`
}

// MeResponse describes the authenticated account.
type MeResponse struct {
	Email            string                  `json:"email"`
	SubscriptionType domain.SubscriptionType `json:"subscriptionType"`
}

// NewAuthResponse renders a fresh session.
func NewAuthResponse(identity *domain.Identity, session *domain.Session) AuthResponse {
	return AuthResponse{
		Token:            session.Token,
		Email:            identity.Email,
		SubscriptionType: identity.SubscriptionType,
		ExpiresAt:        session.ExpiresAt,
	}
}
