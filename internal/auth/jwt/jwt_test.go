package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey, &privateKey.PublicKey
}

func TestManager_Generate(t *testing.T) {
	privateKey, publicKey := generateTestKeys(t)

	manager := NewManagerWithKeys(privateKey, publicKey, Config{
		TokenTTL: 24 * time.Hour,
		Issuer:   "test-issuer",
	})

	token, expiresAt, err := manager.Generate("user-123", "test@example.com")
	require.NoError(t, err)

	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
}

func TestManager_Validate(t *testing.T) {
	privateKey, publicKey := generateTestKeys(t)

	manager := NewManagerWithKeys(privateKey, publicKey, Config{
		TokenTTL: 24 * time.Hour,
		Issuer:   "test-issuer",
	})

	t.Run("valid token", func(t *testing.T) {
		token, _, err := manager.Generate("user-123", "test@example.com")
		require.NoError(t, err)

		claims, err := manager.Validate(token)
		require.NoError(t, err)

		assert.Equal(t, "user-123", claims.UserID)
		assert.Equal(t, "test@example.com", claims.Email)
		assert.Equal(t, "test-issuer", claims.Issuer)
		assert.Equal(t, "user-123", claims.Subject)
	})

	t.Run("invalid token format", func(t *testing.T) {
		_, err := manager.Validate("invalid-token")
		assert.Error(t, err)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		otherPrivate, _ := generateTestKeys(t)
		otherManager := NewManagerWithKeys(otherPrivate, publicKey, Config{
			TokenTTL: 24 * time.Hour,
			Issuer:   "test-issuer",
		})

		token, _, err := otherManager.Generate("user-123", "test@example.com")
		require.NoError(t, err)

		// Validating with different public key should fail
		_, err = manager.Validate(token)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		expiredManager := NewManagerWithKeys(privateKey, publicKey, Config{
			TokenTTL: -time.Minute,
			Issuer:   "test-issuer",
		})

		token, _, err := expiredManager.Generate("user-123", "test@example.com")
		require.NoError(t, err)

		_, err = manager.Validate(token)
		assert.Error(t, err)
	})
}

func TestLoadPrivateKeyFromBytes_InvalidPEM(t *testing.T) {
	_, err := LoadPrivateKeyFromBytes([]byte("not a pem block"))
	assert.Error(t, err)
}

func TestExportPublicKeyPEM_RoundTrip(t *testing.T) {
	_, publicKey := generateTestKeys(t)

	pemData, err := ExportPublicKeyPEM(publicKey)
	require.NoError(t, err)

	loaded, err := LoadPublicKeyFromBytes(pemData)
	require.NoError(t, err)
	assert.Equal(t, 0, publicKey.N.Cmp(loaded.N))
	assert.Equal(t, publicKey.E, loaded.E)
}
