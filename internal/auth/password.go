package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

var (
	ErrPasswordMismatch = errors.New("password does not match")
	ErrMalformedHash    = errors.New("malformed password hash")
	ErrInvalidParams    = errors.New("argon2 parameters out of range")
)

const (
	saltLength = 16
	keyLength  = 32
)

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	MemoryKiB  uint32
	Iterations uint32
	Threads    uint8
}

// argon2 panics on zero iterations or threads.
func (p Argon2Params) valid() bool {
	return p.Iterations > 0 && p.Threads > 0 && p.MemoryKiB >= 8*uint32(p.Threads)
}

// PasswordHasher hashes and verifies passwords with argon2id. Hashes are
// self-describing, so changing the parameters does not invalidate existing
// hashes.
// Every derivation allocates MemoryKiB, so at most maxConcurrent of them run
// at once; callers beyond that wait for a slot or for their context.
type PasswordHasher struct {
	params Argon2Params
	slots  *semaphore.Weighted
	// dummy is verified against when the account does not exist.
	dummy string
}

// NewPasswordHasher builds a hasher for the given cost. maxConcurrent <= 0
// means one derivation per CPU.
func NewPasswordHasher(params Argon2Params, maxConcurrent int) (*PasswordHasher, error) {
	if !params.valid() {
		return nil, ErrInvalidParams
	}
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}
	h := &PasswordHasher{params: params, slots: semaphore.NewWeighted(int64(maxConcurrent))}
	dummy, err := h.Hash(context.Background(), "not-a-real-password")
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

// Hash derives an encoded argon2id hash with a fresh random salt.
func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key, err := h.derive(ctx, password, salt, h.params, keyLength)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Compare verifies a password against its encoded hash in constant time.
func (h *PasswordHasher) Compare(ctx context.Context, encoded, password string) error {
	params, salt, key, err := decodeHash(encoded)
	if err != nil {
		return err
	}
	candidate, err := h.derive(ctx, password, salt, params, uint32(len(key)))
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(candidate, key) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// CompareDummy burns the same time as a real Compare and always fails,
// with ErrPasswordMismatch unless the context ended while waiting.
func (h *PasswordHasher) CompareDummy(ctx context.Context, password string) error {
	if err := h.Compare(ctx, h.dummy, password); err != nil && !errors.Is(err, ErrPasswordMismatch) {
		return err
	}
	return ErrPasswordMismatch
}

func (h *PasswordHasher) derive(ctx context.Context, password string, salt []byte, params Argon2Params, length uint32) ([]byte, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer h.slots.Release(1)
	return argon2.IDKey([]byte(password), salt, params.Iterations, params.MemoryKiB, params.Threads, length), nil
}

func decodeHash(encoded string) (Argon2Params, []byte, []byte, error) {
	var params Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params, nil, nil, ErrMalformedHash
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.MemoryKiB, &params.Iterations, &params.Threads); err != nil {
		return params, nil, nil, ErrMalformedHash
	}

	if !params.valid() {
		return params, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params, nil, nil, ErrMalformedHash
	}
	return params, salt, key, nil
}
