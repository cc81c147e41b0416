package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndVerify(t *testing.T) {
	creds := NewCredentialStore(newTestDB(t))

	user, err := creds.Register("alice", "correct-horse", "10.0.0.1")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)
	assert.Equal(t, "10.0.0.1", user.RegisterIP)

	got, err := creds.Verify("alice", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	creds := NewCredentialStore(newTestDB(t))

	mustRegister(t, creds, "alice")
	_, err := creds.Register("alice", "another-pass", "10.0.0.2")
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestRegisterValidation(t *testing.T) {
	creds := NewCredentialStore(newTestDB(t))

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"short username", "ab", "correct-horse"},
		{"bad characters", "al ice!", "correct-horse"},
		{"short password", "alice", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := creds.Register(tc.username, tc.password, "10.0.0.1")
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestVerifyRejectsWrongPassword(t *testing.T) {
	creds := NewCredentialStore(newTestDB(t))
	mustRegister(t, creds, "alice")

	_, err := creds.Verify("alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyUnknownUserIndistinguishable(t *testing.T) {
	creds := NewCredentialStore(newTestDB(t))
	mustRegister(t, creds, "alice")

	_, wrongPass := creds.Verify("alice", "wrong-password")
	_, noUser := creds.Verify("nobody", "wrong-password")
	assert.Equal(t, wrongPass, noUser)
}

func TestExists(t *testing.T) {
	creds := NewCredentialStore(newTestDB(t))
	mustRegister(t, creds, "alice")

	ok, err := creds.Exists("alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = creds.Exists("bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsertOAuthUser(t *testing.T) {
	creds := NewCredentialStore(newTestDB(t))

	first, err := creds.UpsertOAuthUser("github", "12345", "alice", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "alice", first.Username)
	assert.Equal(t, "github", first.Provider)

	// Same identity resolves to the same account.
	again, err := creds.UpsertOAuthUser("github", "12345", "alice", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// OAuth accounts have no password to verify against.
	_, err = creds.Verify("alice", "anything-at-all")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpsertOAuthUserNameCollision(t *testing.T) {
	creds := NewCredentialStore(newTestDB(t))
	mustRegister(t, creds, "alice")

	user, err := creds.UpsertOAuthUser("github", "12345", "alice", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "github_12345", user.Username)
}

func TestGetUser(t *testing.T) {
	creds := NewCredentialStore(newTestDB(t))
	user := mustRegister(t, creds, "alice")

	got, err := creds.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = creds.GetUser(9999)
	assert.ErrorIs(t, err, ErrNotFound)
}
