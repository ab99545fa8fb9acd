// Package bootstrap wires configuration, storage backends and services
// into one container shared by the API server and the admin CLI.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/taxdesk/internal/auth"
	"github.com/spec-kit/taxdesk/internal/config"
	"github.com/spec-kit/taxdesk/internal/observability"
	"github.com/spec-kit/taxdesk/internal/persistence"
	"github.com/spec-kit/taxdesk/internal/repository"
	"github.com/spec-kit/taxdesk/internal/service"
	"github.com/spec-kit/taxdesk/internal/tax"
)

// Container holds the long-lived dependencies of a process.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Postgres *persistence.Postgres
	Redis    *persistence.Redis
	Metrics  *observability.Metrics

	Credentials *service.CredentialService
	Sessions    *service.SessionService
	Profiles    *service.TaxProfileService
	Auth        *service.AuthService
}

// New connects the configured backends and builds the services. Postgres
// backs identities and profiles when a DSN is set, Redis backs sessions when
// an address is set; anything unset runs in memory.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, err
		}
	}

	rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	hasher, err := auth.NewPasswordHasher(auth.Argon2Params{
		MemoryKiB:  cfg.Auth.Argon2MemoryKiB,
		Iterations: cfg.Auth.Argon2Iterations,
		Threads:    cfg.Auth.Argon2Threads,
	}, cfg.Auth.Argon2MaxConcurrent)
	if err != nil {
		rdb.Close()
		pg.Close()
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	var identities repository.IdentityRepository = repository.NewMemoryIdentityRepository()
	var profiles repository.TaxProfileRepository = repository.NewMemoryTaxProfileRepository()
	var sessions repository.SessionRepository = repository.NewMemorySessionRepository()
	if pg.Enabled() {
		identities = repository.NewIdentityRepository(pg.PoolHandle())
		profiles = repository.NewTaxProfileRepository(pg.PoolHandle())
	}
	if rdb.Enabled() {
		sessions = repository.NewRedisSessionRepository(rdb.Client)
	}

	guard := persistence.NewGuard(cfg.Postgres.StorageTimeout())

	credentials := service.NewCredentialService(service.CredentialDependencies{
		Identities:  identities,
		Hasher:      hasher,
		Guard:       guard,
		DefaultTier: cfg.Auth.DefaultSubscription,
		Logger:      logger,
	})
	sessionService := service.NewSessionService(sessions, credentials, guard, cfg.Auth.SessionTTL(), logger)
	profileService := service.NewTaxProfileService(profiles, credentials, tax.Default(), guard, logger)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		Postgres:    pg,
		Redis:       rdb,
		Metrics:     observability.NewMetrics(),
		Credentials: credentials,
		Sessions:    sessionService,
		Profiles:    profileService,
		Auth:        service.NewAuthService(credentials, sessionService),
	}, nil
}

// Close releases backend connections.
func (c *Container) Close() {
	c.Redis.Close()
	c.Postgres.Close()
}
