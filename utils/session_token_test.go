package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := SignSessionToken("secret", 7, "sid-123", time.Hour)
	require.NoError(t, err)

	claims, err := ParseSessionToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "sid-123", claims.SessionID)
}

func TestSessionTokenWrongSecret(t *testing.T) {
	token, err := SignSessionToken("secret", 7, "sid-123", time.Hour)
	require.NoError(t, err)

	_, err = ParseSessionToken("other-secret", token)
	assert.Error(t, err)
}

func TestSessionTokenExpired(t *testing.T) {
	token, err := SignSessionToken("secret", 7, "sid-123", -time.Minute)
	require.NoError(t, err)

	_, err = ParseSessionToken("secret", token)
	assert.Error(t, err)
}

func TestSessionTokenGarbage(t *testing.T) {
	_, err := ParseSessionToken("secret", "not-a-token")
	assert.Error(t, err)
}
