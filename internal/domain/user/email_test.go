package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmailNormalizes(t *testing.T) {
	a, err := NewEmail("A@B.com")
	require.NoError(t, err)
	b, err := NewEmail(" a@b.com ")
	require.NoError(t, err)

	assert.Equal(t, "a@b.com", a.String())
	assert.True(t, a.Equals(b))
}

func TestNewEmailIdempotent(t *testing.T) {
	a, err := NewEmail("User@Example.COM")
	require.NoError(t, err)
	b, err := NewEmail(a.String())
	require.NoError(t, err)
	assert.True(t, a.Equals(b))
}

func TestNewEmailRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "plain", "a@b", "a b@c.com", "@c.com"} {
		_, err := NewEmail(raw)
		assert.ErrorIs(t, err, ErrInvalidEmail, "input %q", raw)
	}
}

func TestEmailZero(t *testing.T) {
	assert.True(t, Email{}.IsZero())
	e, err := NewEmail("a@b.com")
	require.NoError(t, err)
	assert.False(t, e.IsZero())
}
