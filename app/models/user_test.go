package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserDefaults(t *testing.T) {
	user, err := CreateUser("testuser", "test@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, ROLE_USER, user.Role)
	assert.Equal(t, STATUS_ACTIVE, user.Status)
	assert.Equal(t, TIER_FREE, user.SubscriptionTier)
	assert.True(t, user.CheckPassword("secret123"))
	assert.False(t, user.CheckPassword("wrong"))
}

func TestCreateUserValidation(t *testing.T) {
	_, err := CreateUser("ab", "test@example.com", "secret123")
	assert.Error(t, err, "name too short")

	_, err = CreateUser("testuser", "not-an-email", "secret123")
	assert.Error(t, err, "invalid email")

	_, err = CreateUser("testuser", "test@example.com", "short")
	assert.Error(t, err, "password too short")
}

func TestIssueAPIKey(t *testing.T) {
	user := &User{}
	assert.False(t, user.HasActiveAPIKey())

	key, err := user.IssueAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "ek_"))
	assert.True(t, user.HasActiveAPIKey())
	require.NotNil(t, user.APIKeyCreatedAt)

	// Only the hash is stored; it must match the raw key.
	assert.Equal(t, HashAPIKey(key), user.APIKeyHash)
	assert.NotContains(t, user.APIKeyHash, key)

	// Re-issuing rotates the key.
	second, err := user.IssueAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, second)
	assert.Equal(t, HashAPIKey(second), user.APIKeyHash)
}

func TestHashAPIKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, HashAPIKey("ek_abc"), HashAPIKey("ek_abc"))
	assert.NotEqual(t, HashAPIKey("ek_abc"), HashAPIKey("ek_abd"))
	assert.Len(t, HashAPIKey("ek_abc"), 64)
}
