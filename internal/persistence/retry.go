package persistence

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// Guard bounds every storage round trip with a timeout and retries
// transient failures with exponential backoff.
type Guard struct {
	timeout time.Duration
	backoff time.Duration
	retries uint64
}

// NewGuard returns a guard that allows one retry after a 50ms backoff.
func NewGuard(timeout time.Duration) *Guard {
	return &Guard{timeout: timeout, backoff: 50 * time.Millisecond, retries: 1}
}

// Do runs fn. Each attempt gets its own deadline derived from ctx.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(g.retries, retry.NewExponential(g.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		err := fn(attemptCtx)
		if err != nil && ctx.Err() == nil && IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// IsTransient reports whether err is an I/O or timeout failure that may
// succeed on a second attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// connection exceptions, serialization failures, deadlocks
		return strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
