// Package securetoken generates opaque bearer tokens and computes the
// salted, peppered digests under which they are stored and verified.
package securetoken

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// MinTokenBytes is the smallest permitted token size. 16 bytes
	// (128 bits) is the floor for protocol-significant identifiers.
	MinTokenBytes = 16

	// DefaultTokenBytes is used for all tokens this service mints.
	DefaultTokenBytes = 32

	saltBytes        = 16
	digestIterations = 10000
	digestKeyLen     = 32
)

// ErrTokenTooShort indicates a requested token below the entropy floor.
var ErrTokenTooShort = errors.New("token length below minimum")

// Codec derives and verifies token digests. The pepper is a server-wide
// secret held only in configuration; it is mixed into every digest so a
// copy of the store alone cannot be used to verify candidate tokens.
type Codec struct {
	pepper []byte
}

// NewCodec creates a Codec with the given pepper.
func NewCodec(pepper []byte) *Codec {
	return &Codec{pepper: pepper}
}

// NewToken returns a URL-safe token with byteLength bytes of
// cryptographically secure randomness.
func NewToken(byteLength int) (string, error) {
	if byteLength < MinTokenBytes {
		return "", ErrTokenTooShort
	}
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewSalt returns a fresh random salt. Salts are per stored secret and
// never reused.
func NewSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Digest returns the one-way digest of secret under salt and the codec's
// pepper, hex encoded.
func (c *Codec) Digest(secret, salt string) string {
	key := pbkdf2.Key([]byte(secret), append([]byte(salt), c.pepper...), digestIterations, digestKeyLen, sha256.New)
	return hex.EncodeToString(key)
}

// Verify recomputes the digest of candidate and compares it to
// storedDigest in constant time. Malformed input yields false, never an
// error.
func (c *Codec) Verify(storedDigest, salt, candidate string) bool {
	if storedDigest == "" || candidate == "" {
		return false
	}
	stored, err := hex.DecodeString(storedDigest)
	if err != nil || len(stored) != digestKeyLen {
		return false
	}
	computed, err := hex.DecodeString(c.Digest(candidate, salt))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(stored, computed) == 1
}
