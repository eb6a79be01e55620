package identity_test

import (
	"testing"
	"time"

	identity "github.com/MonisMS/backend-project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenValidatorFunc(t *testing.T) {
	t.Run("delegates to the function", func(t *testing.T) {
		expected := &identity.JWTClaims{UID: "user-123"}
		validator := identity.TokenValidatorFunc(func(tokenString string) (identity.SessionClaims, error) {
			return expected, nil
		})

		claims, err := validator.Validate("anything")
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.UserID())
	})

	t.Run("nil func fails closed", func(t *testing.T) {
		var validator identity.TokenValidatorFunc

		claims, err := validator.Validate("anything")
		assert.Nil(t, claims)
		assert.Error(t, err)
	})
}

func TestMultiTokenValidatorSecretRotation(t *testing.T) {
	oldSecret := identity.NewTokenService([]byte("old-secret"), time.Hour, "test-issuer", testAudience, identity.TokenUseAccess, nil)
	newSecret := identity.NewTokenService([]byte("new-secret"), time.Hour, "test-issuer", testAudience, identity.TokenUseAccess, nil)

	subject := TestIdentity{id: "user-123", username: "alice"}

	oldToken, err := oldSecret.Issue(subject)
	require.NoError(t, err)
	newToken, err := newSecret.Issue(subject)
	require.NoError(t, err)

	validator := identity.NewMultiTokenValidator(newSecret, oldSecret)

	t.Run("token under the new secret", func(t *testing.T) {
		claims, err := validator.Validate(newToken)
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.UserID())
	})

	t.Run("token under the previous secret still validates", func(t *testing.T) {
		claims, err := validator.Validate(oldToken)
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.UserID())
	})

	t.Run("garbage fails with malformed", func(t *testing.T) {
		claims, err := validator.Validate("not-a-token")
		assert.Nil(t, claims)
		assert.True(t, identity.IsMalformedError(err))
	})

	t.Run("expired token stops the chain", func(t *testing.T) {
		expiredService := identity.NewTokenService([]byte("new-secret"), -time.Minute, "test-issuer", testAudience, identity.TokenUseAccess, nil)
		expiredToken, err := expiredService.Issue(subject)
		require.NoError(t, err)

		claims, err := validator.Validate(expiredToken)
		assert.Nil(t, claims)
		assert.ErrorIs(t, err, identity.ErrTokenExpired)
	})
}

func TestMultiTokenValidatorEmpty(t *testing.T) {
	validator := identity.NewMultiTokenValidator(nil, nil)

	claims, err := validator.Validate("anything")
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, identity.ErrTokenMalformed)
}
