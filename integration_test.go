package identity_test

import (
	"context"
	"testing"

	identity "github.com/MonisMS/backend-project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Full credential lifecycle against an in-memory store: register, login,
// refresh rotation, revoke.
func TestCredentialLifecycleIntegration(t *testing.T) {
	manager, _ := setupRepositoryManager(t)
	ctx := context.Background()

	cfg := testConfig()
	sink := &capturingSink{}

	registrar := identity.NewRegisterUserHandler(manager, cfg).WithActivitySink(sink)
	provider := identity.NewUserProvider(manager.Users())
	authenticator := identity.NewAuthenticator(provider, manager.Users(), cfg).
		WithActivitySink(sink)

	user, err := registrar.Execute(ctx, identity.RegisterUserMessage{
		Username:  "alice",
		Email:     "Alice@Example.com",
		Fullname:  "Alice Cooper",
		Password:  "password123",
		AvatarURL: "https://cdn.example.com/avatars/alice.png",
	})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)

	// wrong password, then a successful login by email
	_, err = authenticator.Login(ctx, "alice@example.com", "wrong-password")
	require.ErrorIs(t, err, identity.ErrMismatchedHashAndPassword)

	pair, err := authenticator.Login(ctx, "Alice@Example.com", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	stored, err := manager.Users().GetByIdentifier(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, identity.HashToken(pair.RefreshToken), stored.RefreshTokenHash)
	assert.Equal(t, 0, stored.LoginAttempts)
	require.NotNil(t, stored.LoggedInAt)

	session, err := authenticator.SessionFromToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), session.GetUserID())

	found, err := authenticator.IdentityFromSession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username())

	// rotation: the new pair supersedes the old refresh token
	rotated, err := authenticator.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	_, err = authenticator.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, identity.ErrRefreshTokenRevoked)

	require.NoError(t, authenticator.Revoke(ctx, user.ID.String()))

	_, err = authenticator.Refresh(ctx, rotated.RefreshToken)
	require.ErrorIs(t, err, identity.ErrRefreshTokenRevoked)

	stored, err = manager.Users().GetByIdentifier(ctx, user.ID.String())
	require.NoError(t, err)
	assert.False(t, stored.HasActiveRefreshToken())

	var types []identity.ActivityEventType
	for _, evt := range sink.events {
		types = append(types, evt.EventType)
	}
	assert.Contains(t, types, identity.ActivityEventUserRegistered)
	assert.Contains(t, types, identity.ActivityEventLoginFailure)
	assert.Contains(t, types, identity.ActivityEventLoginSuccess)
	assert.Contains(t, types, identity.ActivityEventSessionRefreshed)
	assert.Contains(t, types, identity.ActivityEventSessionRevoked)
}

// Unknown identifiers are classified against the real store so the record
// not-found verdict never leaks through Login, Refresh, or Revoke.
func TestUnknownIdentityIntegration(t *testing.T) {
	manager, bunDB := setupRepositoryManager(t)
	ctx := context.Background()

	cfg := testConfig()

	registrar := identity.NewRegisterUserHandler(manager, cfg)
	provider := identity.NewUserProvider(manager.Users())
	authenticator := identity.NewAuthenticator(provider, manager.Users(), cfg)

	// unknown user reads exactly like a bad password
	_, err := authenticator.Login(ctx, "nobody@example.com", "password123")
	require.ErrorIs(t, err, identity.ErrMismatchedHashAndPassword)

	err = authenticator.Revoke(ctx, "nobody@example.com")
	require.ErrorIs(t, err, identity.ErrIdentityNotFound)

	user, err := registrar.Execute(ctx, identity.RegisterUserMessage{
		Email:     "carol@example.com",
		Fullname:  "Carol",
		Password:  "password123",
		AvatarURL: "https://cdn.example.com/avatars/carol.png",
	})
	require.NoError(t, err)

	pair, err := authenticator.Login(ctx, "carol@example.com", "password123")
	require.NoError(t, err)

	// a structurally valid refresh token whose subject has vanished
	_, err = bunDB.Exec("DELETE FROM users WHERE id = ?", user.ID.String())
	require.NoError(t, err)

	_, err = authenticator.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, identity.ErrIdentityNotFound)
}

func TestPasswordChangeIntegration(t *testing.T) {
	manager, _ := setupRepositoryManager(t)
	ctx := context.Background()

	cfg := testConfig()

	registrar := identity.NewRegisterUserHandler(manager, cfg)
	provider := identity.NewUserProvider(manager.Users())
	authenticator := identity.NewAuthenticator(provider, manager.Users(), cfg)
	changer := identity.NewChangePasswordHandler(manager, cfg)

	user, err := registrar.Execute(ctx, identity.RegisterUserMessage{
		Email:     "bob@example.com",
		Fullname:  "Bob",
		Password:  "old-password-1",
		AvatarURL: "https://cdn.example.com/avatars/bob.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)

	require.NoError(t, changer.Execute(ctx, identity.ChangePasswordMessage{
		UserID:      user.ID.String(),
		NewPassword: "new-password-2",
	}))

	_, err = authenticator.Login(ctx, "bob@example.com", "old-password-1")
	require.ErrorIs(t, err, identity.ErrMismatchedHashAndPassword)

	pair, err := authenticator.Login(ctx, "bob@example.com", "new-password-2")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
}
