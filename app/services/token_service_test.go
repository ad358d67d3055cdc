package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestTokenService creates a token service for testing with a symmetric key
func createTestTokenService() (TokenService, error) {
	return NewTokenService(
		15*time.Minute,
		"test-issuer",
		"test-audience",
		"test-secret-key-for-jwt-signing-32-chars",
	)
}

func TestNewTokenService(t *testing.T) {
	t.Run("ValidConfiguration", func(t *testing.T) {
		service, err := createTestTokenService()
		require.NoError(t, err)
		assert.NotNil(t, service)
	})

	t.Run("MissingSecretKey", func(t *testing.T) {
		_, err := NewTokenService(15*time.Minute, "test-issuer", "test-audience", "")
		require.Error(t, err)
	})
}

func TestGenerateAndValidateAdminToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	t.Run("RoundTrip", func(t *testing.T) {
		token, err := service.GenerateAdminToken(42)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := service.ValidateAdminToken(token)
		require.NoError(t, err)
		assert.Equal(t, uint(42), claims.AdminID)
		assert.NotEmpty(t, claims.TokenID)
		assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
	})

	t.Run("UniqueTokenIDs", func(t *testing.T) {
		first, err := service.GenerateAdminToken(1)
		require.NoError(t, err)
		second, err := service.GenerateAdminToken(1)
		require.NoError(t, err)

		firstClaims, err := service.ValidateAdminToken(first)
		require.NoError(t, err)
		secondClaims, err := service.ValidateAdminToken(second)
		require.NoError(t, err)
		assert.NotEqual(t, firstClaims.TokenID, secondClaims.TokenID)
	})

	t.Run("GarbageTokenRejected", func(t *testing.T) {
		_, err := service.ValidateAdminToken("not.a.token")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("WrongKeyRejected", func(t *testing.T) {
		other, err := NewTokenService(15*time.Minute, "test-issuer", "test-audience", "a-completely-different-signing-key-here")
		require.NoError(t, err)

		token, err := other.GenerateAdminToken(7)
		require.NoError(t, err)

		_, err = service.ValidateAdminToken(token)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("ExpiredTokenRejected", func(t *testing.T) {
		shortLived, err := NewTokenService(-1*time.Minute, "test-issuer", "test-audience", "test-secret-key-for-jwt-signing-32-chars")
		require.NoError(t, err)

		token, err := shortLived.GenerateAdminToken(7)
		require.NoError(t, err)

		_, err = shortLived.ValidateAdminToken(token)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})
}
