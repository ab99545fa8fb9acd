package domain

import "time"

// SubscriptionType is the account tier. It changes how tax is computed.
type SubscriptionType string

const (
	SubscriptionFree    SubscriptionType = "free"
	SubscriptionPremium SubscriptionType = "premium"
)

// Valid reports whether s is a known tier.
func (s SubscriptionType) Valid() bool {
	switch s {
	case SubscriptionFree, SubscriptionPremium:
		return true
	}
	return false
}

// Identity is a registered account. Email is stored lower-cased.
type Identity struct {
	ID               string
	Email            string
	PasswordHash     string
	SubscriptionType SubscriptionType
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
