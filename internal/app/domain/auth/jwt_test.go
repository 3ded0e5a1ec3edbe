package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := GenerateAccessToken(userID, "ana@example.com", "member", "test-secret", time.Minute)
	require.NoError(t, err)

	claims, err := ValidateAccessToken(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, "member", claims.Role)
	assert.Equal(t, "roamly", claims.Issuer)
}

func TestAccessTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateAccessToken(uuid.New(), "ana@example.com", "member", "right-secret", time.Minute)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, "wrong-secret")
	assert.Error(t, err)
}

func TestAccessTokenRejectsExpired(t *testing.T) {
	token, err := GenerateAccessToken(uuid.New(), "ana@example.com", "member", "test-secret", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, "test-secret")
	assert.Error(t, err)
}

func TestOpaqueTokensAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		token, err := GenerateOpaqueToken()
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.False(t, seen[token], "duplicate opaque token")
		seen[token] = true
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.NoError(t, CheckPassword(hash, "hunter2"))
	assert.Error(t, CheckPassword(hash, "hunter3"))
}
