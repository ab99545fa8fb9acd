package persistence

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "conn reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "connection failure", err: &pgconn.PgError{Code: "08006"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestGuardRetriesTransientOnce(t *testing.T) {
	guard := &Guard{timeout: time.Second, backoff: time.Millisecond, retries: 1}

	calls := 0
	err := guard.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return syscall.ECONNRESET
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = guard.Do(context.Background(), func(context.Context) error {
		calls++
		return syscall.ECONNREFUSED
	})
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
	assert.Equal(t, 2, calls)
}

func TestGuardDoesNotRetryDeterministicErrors(t *testing.T) {
	guard := &Guard{timeout: time.Second, backoff: time.Millisecond, retries: 1}
	sentinel := errors.New("record already exists")

	calls := 0
	err := guard.Do(context.Background(), func(context.Context) error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestGuardAppliesAttemptTimeout(t *testing.T) {
	guard := &Guard{timeout: 10 * time.Millisecond, backoff: time.Millisecond, retries: 1}

	calls := 0
	err := guard.Do(context.Background(), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls)
}

func TestGuardStopsWhenCallerGone(t *testing.T) {
	guard := NewGuard(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := guard.Do(ctx, func(ctx context.Context) error {
		calls++
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, calls, 1)
}
