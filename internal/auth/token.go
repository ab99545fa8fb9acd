package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// tokenBytes of entropy per session token; 256 bits.
const tokenBytes = 32

var ErrMalformedToken = errors.New("malformed token")

// tokenLength is the encoded length of a token.
var tokenLength = base64.RawURLEncoding.EncodedLen(tokenBytes)

// NewToken returns a fresh opaque bearer token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidateToken checks the token has the shape NewToken produces.
func ValidateToken(token string) error {
	if len(token) != tokenLength {
		return ErrMalformedToken
	}
	if _, err := base64.RawURLEncoding.DecodeString(token); err != nil {
		return ErrMalformedToken
	}
	return nil
}

// TokenDigest is the key sessions are stored under. Stores never see the
// bearer token itself.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
