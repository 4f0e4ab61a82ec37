package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/desertthunder/prismatify/internal/shared"
)

// VerifierLength is the length of the PKCE code verifier.
// The RFC minimum is 43 characters; Spotify accepts up to 128.
const VerifierLength = 128

const verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateVerifier produces a cryptographically random code verifier of
// [VerifierLength] characters drawn from the unreserved alphanumeric alphabet.
func GenerateVerifier() (string, error) {
	buf := make([]byte, VerifierLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	for i, b := range buf {
		buf[i] = verifierAlphabet[int(b)%len(verifierAlphabet)]
	}

	return string(buf), nil
}

// DeriveChallenge computes the S256 code challenge for a verifier:
// base64url(sha256(verifier)) with padding stripped.
func DeriveChallenge(verifier string) string {
	digest := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// GenerateState produces a CSRF state nonce for the authorization redirect.
func GenerateState() string {
	return shared.GenerateID()
}
