package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/taxdesk/internal/domain"
)

// MemoryIdentityRepository keeps identities in process memory. It backs the
// service when no Postgres DSN is configured.
type MemoryIdentityRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Identity
	byEmail map[string]string
}

// NewMemoryIdentityRepository returns an empty store.
func NewMemoryIdentityRepository() *MemoryIdentityRepository {
	return &MemoryIdentityRepository{
		byID:    make(map[string]*domain.Identity),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryIdentityRepository) Create(_ context.Context, identity *domain.Identity) error {
	email := strings.ToLower(identity.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[email]; taken {
		return ErrDuplicate
	}
	if _, taken := r.byID[identity.ID]; taken {
		return ErrDuplicate
	}

	now := time.Now().UTC()
	identity.Email = email
	identity.CreatedAt = now
	identity.UpdatedAt = now

	stored := *identity
	r.byID[identity.ID] = &stored
	r.byEmail[email] = identity.ID
	return nil
}

func (r *MemoryIdentityRepository) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *stored
	return &out, nil
}

func (r *MemoryIdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	r.mu.RLock()
	id, ok := r.byEmail[strings.ToLower(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryIdentityRepository) UpdateSubscription(_ context.Context, id string, tier domain.SubscriptionType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	stored.SubscriptionType = tier
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

// MemoryTaxProfileRepository keeps tax profiles in process memory.
type MemoryTaxProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]domain.TaxProfile
}

// NewMemoryTaxProfileRepository returns an empty store.
func NewMemoryTaxProfileRepository() *MemoryTaxProfileRepository {
	return &MemoryTaxProfileRepository{profiles: make(map[string]domain.TaxProfile)}
}

func (r *MemoryTaxProfileRepository) Get(_ context.Context, identityID string) (*domain.TaxProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[identityID]
	if !ok {
		return nil, ErrNotFound
	}
	return &profile, nil
}

func (r *MemoryTaxProfileRepository) Save(_ context.Context, profile *domain.TaxProfile) error {
	profile.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.IdentityID] = *profile
	return nil
}

// MemorySessionRepository keeps sessions in process memory. Expired entries
// are dropped by the caller on lookup.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewMemorySessionRepository returns an empty store.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]domain.Session)}
}

func (r *MemorySessionRepository) Create(_ context.Context, digest string, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.sessions[digest]; taken {
		return ErrDuplicate
	}
	stored := *session
	stored.Token = ""
	r.sessions[digest] = stored
	return nil
}

func (r *MemorySessionRepository) Get(_ context.Context, digest string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[digest]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (r *MemorySessionRepository) Delete(_ context.Context, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, digest)
	return nil
}

// Len reports how many sessions are held, expired ones included.
func (r *MemorySessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
