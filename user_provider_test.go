package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	identity "github.com/MonisMS/backend-project"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

func hashedPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := identity.HashPasswordWithCost(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func TestUserProviderVerifyIdentity(t *testing.T) {
	ctx := context.Background()
	mockTracker := new(MockUserTracker)

	provider := identity.NewUserProvider(mockTracker)

	t.Run("Successful verification", func(t *testing.T) {
		userID := uuid.New()
		user := &identity.User{
			ID:            userID,
			Username:      "testuser",
			Email:         "test@example.com",
			Fullname:      "test user",
			PasswordHash:  hashedPassword(t, "password123"),
			LoginAttempts: 0,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		mockTracker.On("TrackSuccessfulLogin", ctx, user).Return(nil).Once()

		id, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.NoError(t, err)
		assert.NotNil(t, id)
		assert.Equal(t, userID.String(), id.ID())
		assert.Equal(t, "testuser", id.Username())
		assert.Equal(t, "test@example.com", id.Email())
		assert.Equal(t, "test user", id.Fullname())

		mockTracker.AssertExpectations(t)
	})

	t.Run("Invalid password", func(t *testing.T) {
		user := &identity.User{
			ID:           uuid.New(),
			Username:     "testuser",
			Email:        "test@example.com",
			PasswordHash: hashedPassword(t, "correct_password"),
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		mockTracker.On("TrackAttemptedLogin", ctx, user).Return(nil).Once()

		id, err := provider.VerifyIdentity(ctx, "test@example.com", "wrong_password")

		assert.Nil(t, id)
		assert.ErrorIs(t, err, identity.ErrMismatchedHashAndPassword)

		mockTracker.AssertExpectations(t)
	})

	t.Run("Unknown user reads as invalid credentials", func(t *testing.T) {
		mockTracker.On("GetByIdentifier", ctx, "nonexistent@example.com").
			Return(nil, identity.ErrIdentityNotFound).Once()

		id, err := provider.VerifyIdentity(ctx, "nonexistent@example.com", "password123")

		assert.Nil(t, id)
		// callers cannot tell unknown user apart from bad password
		assert.ErrorIs(t, err, identity.ErrMismatchedHashAndPassword)

		mockTracker.AssertExpectations(t)
	})

	t.Run("Store failure surfaces as internal error", func(t *testing.T) {
		mockTracker.On("GetByIdentifier", ctx, "test@example.com").
			Return(nil, errors.New("connection refused")).Once()

		id, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.Nil(t, id)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to retrieve user")

		mockTracker.AssertExpectations(t)
	})

	t.Run("Too many login attempts", func(t *testing.T) {
		now := time.Now()
		user := &identity.User{
			ID:             uuid.New(),
			Username:       "testuser",
			Email:          "test@example.com",
			PasswordHash:   hashedPassword(t, "password123"),
			LoginAttempts:  identity.MaxLoginAttempts + 1,
			LoginAttemptAt: &now,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()

		id, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.Nil(t, id)
		assert.ErrorIs(t, err, identity.ErrTooManyLoginAttempts)

		mockTracker.AssertExpectations(t)
	})

	t.Run("Login attempts cooldown expired", func(t *testing.T) {
		userID := uuid.New()
		oldAttempt := time.Now().Add(-48 * time.Hour)
		user := &identity.User{
			ID:             userID,
			Username:       "testuser",
			Email:          "test@example.com",
			PasswordHash:   hashedPassword(t, "password123"),
			LoginAttempts:  identity.MaxLoginAttempts + 1,
			LoginAttemptAt: &oldAttempt,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		mockTracker.On("TrackSuccessfulLogin", ctx, mock.MatchedBy(func(u *identity.User) bool {
			return u.ID == userID && u.LoginAttempts == 0 // attempts reset
		})).Return(nil).Once()

		id, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.NoError(t, err)
		assert.NotNil(t, id)
		assert.Equal(t, userID.String(), id.ID())

		mockTracker.AssertExpectations(t)
	})

	t.Run("Record without credential is rejected", func(t *testing.T) {
		user := &identity.User{
			ID:       uuid.New(),
			Username: "testuser",
			Email:    "test@example.com",
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()

		id, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.Nil(t, id)
		assert.Error(t, err)

		var richErr *goerrors.Error
		assert.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, "NO_CREDENTIAL", richErr.TextCode)

		// a record with no credential is not a failed password attempt
		mockTracker.AssertNotCalled(t, "TrackAttemptedLogin", ctx, user)
		mockTracker.AssertExpectations(t)
	})
}

func TestUserProviderFindIdentityByIdentifier(t *testing.T) {
	ctx := context.Background()
	mockTracker := new(MockUserTracker)

	provider := identity.NewUserProvider(mockTracker)

	t.Run("User found", func(t *testing.T) {
		userID := uuid.New()
		user := &identity.User{
			ID:           userID,
			Username:     "testuser",
			Email:        "test@example.com",
			Fullname:     "test user",
			PasswordHash: "$2a$10$notactuallycheckedhere",
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()

		id, err := provider.FindIdentityByIdentifier(ctx, "test@example.com")

		assert.NoError(t, err)
		assert.NotNil(t, id)
		assert.Equal(t, userID.String(), id.ID())
		assert.Equal(t, "testuser", id.Username())

		mockTracker.AssertExpectations(t)
	})

	t.Run("User not found", func(t *testing.T) {
		mockTracker.On("GetByIdentifier", ctx, "nonexistent@example.com").
			Return(nil, identity.ErrIdentityNotFound).Once()

		id, err := provider.FindIdentityByIdentifier(ctx, "nonexistent@example.com")

		assert.Nil(t, id)
		assert.ErrorIs(t, err, identity.ErrIdentityNotFound)

		mockTracker.AssertExpectations(t)
	})
}

func TestUserProviderValidator(t *testing.T) {
	mockTracker := new(MockUserTracker)
	provider := identity.NewUserProvider(mockTracker)

	t.Run("Default validator rejects empty credential", func(t *testing.T) {
		err := provider.Validator(&identity.User{ID: uuid.New()})
		assert.Error(t, err)
	})

	t.Run("Default validator accepts stored credential", func(t *testing.T) {
		err := provider.Validator(&identity.User{
			ID:           uuid.New(),
			PasswordHash: "$2a$10$something",
		})
		assert.NoError(t, err)
	})

	t.Run("Custom validator", func(t *testing.T) {
		customErr := errors.New("custom validation error")
		provider.Validator = func(u *identity.User) error {
			return customErr
		}

		err := provider.Validator(&identity.User{ID: uuid.New()})
		assert.Equal(t, customErr, err)
	})
}
