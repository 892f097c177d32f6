package user

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPasswordPolicy(t *testing.T) {
	cases := []struct {
		name  string
		plain string
		err   error
	}{
		{"seven chars", "short1!", ErrPasswordTooShort},
		{"over max", strings.Repeat("Aa1!", 26), ErrPasswordTooLong},
		{"no uppercase", "alllowercase1!", ErrPasswordTooWeak},
		{"no lowercase", "ALLUPPERCASE1!", ErrPasswordTooWeak},
		{"no digit", "NoDigits!!", ErrPasswordTooWeak},
		{"no special", "NoSpecial123", ErrPasswordTooWeak},
		{"valid", "Valid123!", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPassword(tc.plain)
			if tc.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestNewPasswordWithoutStrength(t *testing.T) {
	_, err := NewPasswordWithoutStrength("alllowercase")
	assert.NoError(t, err)

	_, err = NewPasswordWithoutStrength("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	plain, err := NewPassword("Valid123!")
	require.NoError(t, err)

	hashed, err := plain.Hash()
	require.NoError(t, err)

	assert.NotEqual(t, "Valid123!", hashed.HashedValue())
	assert.True(t, hashed.Verify("Valid123!"))
	assert.False(t, hashed.Verify("Other123!"))
}

func TestPasswordFromHash(t *testing.T) {
	plain, err := NewPassword("Valid123!")
	require.NoError(t, err)
	hashed, err := plain.Hash()
	require.NoError(t, err)

	restored := PasswordFromHash(hashed.HashedValue())
	assert.True(t, restored.Verify("Valid123!"))
}

func TestZeroPasswordNeverVerifies(t *testing.T) {
	assert.False(t, Password{}.Verify(""))
	assert.False(t, Password{}.Verify("anything"))
}
