package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
	})

	t.Run("wrapped domain error is preserved", func(t *testing.T) {
		base := NewConflict("email already registered", nil)
		got := ToDomainError(fmt.Errorf("register: %w", base))
		require.NotNil(t, got)
		assert.Equal(t, CodeConflict, got.Code)
		assert.Equal(t, http.StatusConflict, got.HTTPStatus)
	})

	t.Run("fiber error keeps status", func(t *testing.T) {
		got := ToDomainError(fiber.NewError(http.StatusNotFound, "Cannot GET /nope"))
		assert.Equal(t, CodeNotFound, got.Code)
		assert.Equal(t, http.StatusNotFound, got.HTTPStatus)
		assert.Equal(t, "Cannot GET /nope", got.Message)
	})

	t.Run("unknown error hides details", func(t *testing.T) {
		got := ToDomainError(errors.New("pq: relation identities does not exist"))
		assert.Equal(t, CodeInternal, got.Code)
		assert.Equal(t, http.StatusInternalServerError, got.HTTPStatus)
		assert.Equal(t, "internal server error", got.Message)
	})
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("resolve: %w", NewUnauthorized("invalid token"))
	assert.True(t, IsKind(err, CodeUnauthorized))
	assert.False(t, IsKind(err, CodeConflict))
	assert.False(t, IsKind(errors.New("plain"), CodeUnauthorized))
}

func TestUnavailableUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := NewUnavailable(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusServiceUnavailable, ToDomainError(err).HTTPStatus)
}
