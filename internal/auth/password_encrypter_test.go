package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DefaultPasswordEncrypter_Encrypt(t *testing.T) {
	ctx := context.Background()
	passwordEncrypter := NewDefaultPasswordEncrypter()

	t.Run("returns ErrPasswordTooShort for short passwords", func(t *testing.T) {
		_, err := passwordEncrypter.Encrypt(ctx, "short")
		assert.ErrorIs(t, err, ErrPasswordTooShort)
	})

	t.Run("encrypts a valid password", func(t *testing.T) {
		encryptedPassword, err := passwordEncrypter.Encrypt(ctx, "correct-horse-battery")
		require.NoError(t, err)
		assert.NotEqual(t, "correct-horse-battery", encryptedPassword)
	})
}

func Test_DefaultPasswordEncrypter_ComparePassword(t *testing.T) {
	ctx := context.Background()
	passwordEncrypter := NewDefaultPasswordEncrypter()

	encryptedPassword, err := passwordEncrypter.Encrypt(ctx, "correct-horse-battery")
	require.NoError(t, err)

	isEqual, err := passwordEncrypter.ComparePassword(ctx, encryptedPassword, "correct-horse-battery")
	require.NoError(t, err)
	assert.True(t, isEqual)

	isEqual, err = passwordEncrypter.ComparePassword(ctx, encryptedPassword, "wrong-password")
	require.NoError(t, err)
	assert.False(t, isEqual)
}
