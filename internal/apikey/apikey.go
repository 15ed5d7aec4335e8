// Package apikey generates API keys and verifies presented keys against a
// salted PBKDF2 digest.
package apikey

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
	keyBytes       = 32
	saltBytes      = 16
	iterationCount = 100000
	digestLength   = 32
)

// ErrEmptySalt is returned when a digest is requested without a salt.
var ErrEmptySalt = errors.New("apikey: salt cannot be empty")

// Generate returns a new random API key encoded as URL-safe base64.
func Generate() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("apikey: generate: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateSalt returns a new random hex-encoded salt.
func GenerateSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("apikey: generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Digest derives the PBKDF2-SHA256 digest of key with salt, hex encoded.
func Digest(key, salt string) (string, error) {
	if salt == "" {
		return "", ErrEmptySalt
	}
	d := pbkdf2.Key([]byte(key), []byte(salt), iterationCount, digestLength, sha256.New)
	return hex.EncodeToString(d), nil
}

// Verifier checks presented keys against a stored digest.
type Verifier struct {
	salt   string
	digest []byte
}

// NewVerifier creates a Verifier for the given plaintext key.
// Only the digest of the key is retained.
func NewVerifier(key, salt string) (*Verifier, error) {
	digest, err := Digest(key, salt)
	if err != nil {
		return nil, err
	}
	return &Verifier{salt: salt, digest: []byte(digest)}, nil
}

// Verify reports whether presented matches the configured key.
// The comparison runs in constant time.
func (v *Verifier) Verify(presented string) bool {
	if presented == "" {
		return false
	}
	digest, err := Digest(presented, v.salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(digest), v.digest) == 1
}
