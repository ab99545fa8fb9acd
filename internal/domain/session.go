package domain

import "time"

// Session binds an opaque bearer token to an identity until ExpiresAt.
type Session struct {
	Token      string
	IdentityID string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
