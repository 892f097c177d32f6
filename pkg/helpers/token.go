package helpers

import (
	"crypto/rand"
	"encoding/base64"
)

// Redis key builders for one-shot tokens.

// KeyVerifyToken maps an email verification token to a user id.
func KeyVerifyToken(t string) string { return "email:verify:token:" + t }

// KeyResetToken maps a password reset token to a user id.
func KeyResetToken(t string) string { return "pwd:reset:token:" + t }

// GenerateToken returns n random bytes as a URL-safe string.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
