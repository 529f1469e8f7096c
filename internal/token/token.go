// Package token generates opaque ticket tokens and derives the digest
// form that is the only value ever persisted or queried.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Tokens are UUID v4 in canonical text form. The regexp pins the
// version and variant nibbles so random hex of the right shape is
// still rejected before any storage lookup.
var wellFormed = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// Generate returns a fresh cryptographically random token.
func Generate() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return u.String(), nil
}

// Digest returns the SHA-256 hex of a token. Deterministic: the stored
// digest is the lookup key for every scan.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IsWellFormed screens surface syntax cheaply. This is an input filter,
// not a security boundary; forged-but-well-formed values still fail the
// digest lookup.
func IsWellFormed(candidate string) bool {
	return wellFormed.MatchString(strings.ToLower(candidate))
}

// ScanURL builds the URL a QR collaborator encodes for a ticket.
func ScanURL(baseURL, token string) string {
	return fmt.Sprintf("%s/t/scan?tkn=%s", strings.TrimRight(baseURL, "/"), token)
}
