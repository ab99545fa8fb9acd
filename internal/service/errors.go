package service

import (
	"context"

	"github.com/spec-kit/taxdesk/internal/persistence"
	apperrors "github.com/spec-kit/taxdesk/pkg/util"
)

// storageFailure classifies an unexpected repository error. Transient
// failures surface as retryable; anything else is internal.
func storageFailure(err error) error {
	if persistence.IsTransient(err) {
		return apperrors.NewUnavailable(err)
	}
	return apperrors.NewInternalError(err)
}

// hashFailure classifies a password hashing error. A context that ended
// while waiting for a hashing slot means the server is saturated.
func hashFailure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apperrors.NewUnavailable(err)
	}
	return apperrors.NewInternalError(err)
}
