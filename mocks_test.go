package identity_test

import (
	"context"
	"database/sql"
	"time"

	identity "github.com/MonisMS/backend-project"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

// TestIdentity is a simple implementation of the Identity interface for testing
type TestIdentity struct {
	id       string
	username string
	email    string
	fullname string
}

func (t TestIdentity) ID() string       { return t.id }
func (t TestIdentity) Username() string { return t.username }
func (t TestIdentity) Email() string    { return t.email }
func (t TestIdentity) Fullname() string { return t.fullname }

func testConfig() *identity.TokenConfig {
	return &identity.TokenConfig{
		AccessTokenSecret:  "test-access-secret",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenSecret: "test-refresh-secret",
		RefreshTokenTTL:    24 * time.Hour,
		HashCost:           bcrypt.MinCost,
		Issuer:             "test-issuer",
		Audience:           []string{"test:audience"},
	}
}

// MockIdentityProvider implements identity.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (identity.Identity, error) {
	args := m.Called(ctx, identifier, password)
	if id, ok := args.Get(0).(identity.Identity); ok {
		return id, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (identity.Identity, error) {
	args := m.Called(ctx, identifier)
	if id, ok := args.Get(0).(identity.Identity); ok {
		return id, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockUserTracker implements identity.UserTracker
type MockUserTracker struct {
	mock.Mock
}

func (m *MockUserTracker) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*identity.User, error) {
	args := m.Called(ctx, identifier)
	if u, ok := args.Get(0).(*identity.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserTracker) TrackAttemptedLogin(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserTracker) TrackSuccessfulLogin(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockSessionStore implements identity.RefreshSessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*identity.User, error) {
	args := m.Called(ctx, identifier)
	if u, ok := args.Get(0).(*identity.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionStore) StoreRefreshTokenHash(ctx context.Context, id uuid.UUID, digest string) error {
	args := m.Called(ctx, id, digest)
	return args.Error(0)
}

func (m *MockSessionStore) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockActivitySink implements identity.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event identity.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockUsers mocks the repository methods the command handlers touch. The
// embedded interface covers the rest; calling an unmocked method panics,
// which is exactly what we want in a test.
type MockUsers struct {
	mock.Mock
	identity.Users
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *identity.User, criteria ...repository.InsertCriteria) (*identity.User, error) {
	args := m.Called(ctx, tx, record)
	if u, ok := args.Get(0).(*identity.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*identity.User, error) {
	args := m.Called(ctx, tx, identifier)
	if u, ok := args.Get(0).(*identity.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

// MockRepositoryManager implements identity.RepositoryManager. RunInTx
// executes the closure against a zero transaction unless an error was
// configured.
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error { return nil }

func (m *MockRepositoryManager) MustValidate() {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(context.Context, bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	if err := args.Error(0); err != nil {
		return err
	}
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Users() identity.Users {
	args := m.Called()
	if u, ok := args.Get(0).(identity.Users); ok {
		return u
	}
	return nil
}

func (m *MockRepositoryManager) WatchHistory() repository.Repository[*identity.WatchHistoryEntry] {
	return nil
}

// capturingSink records every event it sees, in order.
type capturingSink struct {
	events []identity.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt identity.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}
