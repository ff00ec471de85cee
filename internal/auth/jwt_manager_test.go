package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateECKeypair(t *testing.T) (publicKey, privateKey string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	privateKeyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	privateKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privateKeyDER})

	publicKeyDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicKeyDER})

	return string(publicKeyPEM), string(privateKeyPEM)
}

func Test_DefaultJWTManager_GenerateToken(t *testing.T) {
	ctx := context.Background()
	publicKey, privateKey := generateECKeypair(t)
	jwtManager := newDefaultJWTManager(withECKeypair(publicKey, privateKey))

	user := &User{
		ID:    "user-id",
		Email: "operator@bank.local",
		Roles: []string{OperatorUserRole.String()},
	}

	tokenString, err := jwtManager.GenerateToken(ctx, user, time.Now().Add(time.Minute*15))
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	isValid, err := jwtManager.ValidateToken(ctx, tokenString)
	require.NoError(t, err)
	assert.True(t, isValid)

	tokenUser, err := jwtManager.GetUserFromToken(ctx, tokenString)
	require.NoError(t, err)
	assert.Equal(t, user, tokenUser)
}

func Test_DefaultJWTManager_GenerateToken_invalidKey(t *testing.T) {
	ctx := context.Background()
	jwtManager := newDefaultJWTManager(withECKeypair("invalid", "invalid"))

	_, err := jwtManager.GenerateToken(ctx, &User{ID: "user-id"}, time.Now().Add(time.Minute))
	assert.ErrorContains(t, err, "parsing EC Private Key")
}

func Test_DefaultJWTManager_ValidateToken(t *testing.T) {
	ctx := context.Background()
	publicKey, privateKey := generateECKeypair(t)
	jwtManager := newDefaultJWTManager(withECKeypair(publicKey, privateKey))

	t.Run("returns false for a malformed token", func(t *testing.T) {
		isValid, err := jwtManager.ValidateToken(ctx, "not.a.token")
		require.NoError(t, err)
		assert.False(t, isValid)
	})

	t.Run("returns false for an expired token", func(t *testing.T) {
		tokenString, err := jwtManager.GenerateToken(ctx, &User{ID: "user-id"}, time.Now().Add(-time.Minute))
		require.NoError(t, err)

		isValid, err := jwtManager.ValidateToken(ctx, tokenString)
		require.NoError(t, err)
		assert.False(t, isValid)
	})

	t.Run("returns false for a token signed with another key", func(t *testing.T) {
		otherPublicKey, otherPrivateKey := generateECKeypair(t)
		otherManager := newDefaultJWTManager(withECKeypair(otherPublicKey, otherPrivateKey))

		tokenString, err := otherManager.GenerateToken(ctx, &User{ID: "user-id"}, time.Now().Add(time.Minute))
		require.NoError(t, err)

		isValid, err := jwtManager.ValidateToken(ctx, tokenString)
		require.NoError(t, err)
		assert.False(t, isValid)
	})
}

func Test_DefaultJWTManager_RefreshToken(t *testing.T) {
	ctx := context.Background()
	publicKey, privateKey := generateECKeypair(t)
	jwtManager := newDefaultJWTManager(withECKeypair(publicKey, privateKey))

	user := &User{ID: "user-id", Email: "operator@bank.local"}

	t.Run("keeps the same token when far from expiration", func(t *testing.T) {
		tokenString, err := jwtManager.GenerateToken(ctx, user, time.Now().Add(time.Minute*15))
		require.NoError(t, err)

		refreshed, err := jwtManager.RefreshToken(ctx, tokenString, time.Now().Add(time.Minute*15))
		require.NoError(t, err)
		assert.Equal(t, tokenString, refreshed)
	})

	t.Run("issues a new token close to expiration", func(t *testing.T) {
		tokenString, err := jwtManager.GenerateToken(ctx, user, time.Now().Add(time.Minute))
		require.NoError(t, err)

		refreshed, err := jwtManager.RefreshToken(ctx, tokenString, time.Now().Add(time.Minute*15))
		require.NoError(t, err)
		assert.NotEqual(t, tokenString, refreshed)

		isValid, err := jwtManager.ValidateToken(ctx, refreshed)
		require.NoError(t, err)
		assert.True(t, isValid)
	})
}

func Test_DefaultJWTManager_GetTokenExpiration(t *testing.T) {
	ctx := context.Background()
	publicKey, privateKey := generateECKeypair(t)
	jwtManager := newDefaultJWTManager(withECKeypair(publicKey, privateKey))

	expiresAt := time.Now().Add(time.Minute * 15)
	tokenString, err := jwtManager.GenerateToken(ctx, &User{ID: "user-id"}, expiresAt)
	require.NoError(t, err)

	gotExpiresAt, err := jwtManager.GetTokenExpiration(ctx, tokenString)
	require.NoError(t, err)
	assert.WithinDuration(t, expiresAt, gotExpiresAt, time.Second)
}
