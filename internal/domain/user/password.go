package user

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	PasswordMinLength = 8
	PasswordMaxLength = 100
)

const passwordSpecialChars = `!@#$%^&*()_+-=[]{};':"|,.<>/?~` + "`"

// PlainPassword is a validated plaintext candidate. It exists only between
// input validation and hashing and is never stored.
type PlainPassword struct {
	value string
}

// NewPassword validates a plaintext candidate against the full policy:
// length 8-100 plus at least one lowercase, uppercase, digit and special
// character.
func NewPassword(plain string) (PlainPassword, error) {
	if err := checkLength(plain); err != nil {
		return PlainPassword{}, err
	}
	var lower, upper, digit, special bool
	for _, r := range plain {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecialChars, r):
			special = true
		}
	}
	if !lower || !upper || !digit || !special {
		return PlainPassword{}, ErrPasswordTooWeak
	}
	return PlainPassword{value: plain}, nil
}

// NewPasswordWithoutStrength validates length only. Used for legacy imports
// where the strength policy cannot be enforced retroactively.
func NewPasswordWithoutStrength(plain string) (PlainPassword, error) {
	if err := checkLength(plain); err != nil {
		return PlainPassword{}, err
	}
	return PlainPassword{value: plain}, nil
}

func checkLength(plain string) error {
	switch {
	case len(plain) < PasswordMinLength:
		return ErrPasswordTooShort
	case len(plain) > PasswordMaxLength:
		return ErrPasswordTooLong
	}
	return nil
}

// Hash derives the one-way bcrypt hash. The plaintext is not retained by the
// returned Password.
func (p PlainPassword) Hash() (Password, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p.value), bcrypt.DefaultCost)
	if err != nil {
		return Password{}, err
	}
	return Password{hash: string(b)}, nil
}

// Password holds an opaque password hash. Verification is one-way; the
// plaintext is never reconstructible.
type Password struct {
	hash string
}

// PasswordFromHash wraps a stored hash loaded from persistence.
func PasswordFromHash(hash string) Password {
	return Password{hash: hash}
}

func (p Password) HashedValue() string { return p.hash }

func (p Password) IsZero() bool { return p.hash == "" }

// Verify compares a candidate plaintext against the stored hash.
func (p Password) Verify(candidate string) bool {
	if p.hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(p.hash), []byte(candidate)) == nil
}
