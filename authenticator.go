package identity

import (
	"context"
	"crypto/subtle"
	"reflect"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// RefreshSessionStore persists the rotation state of refresh tokens.
// Users satisfies it.
type RefreshSessionStore interface {
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	StoreRefreshTokenHash(ctx context.Context, id uuid.UUID, digest string) error
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
}

type Auther struct {
	provider        IdentityProvider
	sessions        RefreshSessionStore
	tokens          *TokenIssuer
	tokenValidator  TokenValidator
	logger          Logger
	activitySink    ActivitySink
	claimsDecorator ClaimsDecorator
}

// NewAuthenticator returns a new Authenticator wired to the given identity
// provider, refresh session store, and token configuration.
func NewAuthenticator(provider IdentityProvider, sessions RefreshSessionStore, cfg Config) *Auther {
	logger := defLogger{}

	return &Auther{
		provider:     provider,
		sessions:     sessions,
		tokens:       NewTokenIssuer(cfg, logger),
		logger:       logger,
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClaimsDecorator configures a ClaimsDecorator applied to access-token
// claims on every issuance.
func (s *Auther) WithClaimsDecorator(decorator ClaimsDecorator) *Auther {
	s.claimsDecorator = normalizeClaimsDecorator(decorator)
	return s
}

// WithTokenValidator sets a custom validator for access tokens, e.g. a
// MultiTokenValidator during a signing-secret rotation.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// TokenIssuer returns the TokenIssuer instance used by this Authenticator
func (s *Auther) TokenIssuer() *TokenIssuer {
	return s.tokens
}

// Login verifies the credentials, mints an access/refresh pair, and stores
// the digest of the new refresh token so previous sessions are superseded.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrIdentityNotFound.Error(),
		})
		return nil, ErrIdentityNotFound
	}

	pair, err := s.issuePair(ctx, identity)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	if err := s.persistRefreshToken(ctx, identity.ID(), pair.RefreshToken); err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": identifier,
	})

	return pair, nil
}

// Refresh validates a refresh token against the refresh secret, checks that
// it is still the active session token, and rotates the pair.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		s.logger.Error("Refresh token validation failed", "error", err)
		return nil, err
	}

	user, err := s.sessions.GetByIdentifier(ctx, claims.UserID())
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during refresh")
	}

	if !refreshTokenMatches(user, refreshToken) {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), map[string]any{
			"error": ErrRefreshTokenRevoked.Message,
		})
		return nil, ErrRefreshTokenRevoked
	}

	pair, err := s.issuePair(ctx, user.Identity())
	if err != nil {
		return nil, err
	}

	if err := s.persistRefreshToken(ctx, user.ID.String(), pair.RefreshToken); err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventSessionRefreshed, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), nil)

	return pair, nil
}

// Revoke clears the stored refresh token digest for the user, e.g. on
// logout. Outstanding access tokens stay valid until they expire; no new
// pair can be minted from the revoked refresh token.
func (s *Auther) Revoke(ctx context.Context, identifier string) error {
	user, err := s.sessions.GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return ErrIdentityNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during revocation")
	}

	if err := s.sessions.ClearRefreshToken(ctx, user.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear refresh token")
	}

	s.emitAuthEvent(ctx, ActivityEventSessionRevoked, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), nil)

	return nil
}

func (s *Auther) issuePair(ctx context.Context, identity Identity) (*TokenPair, error) {
	if s.claimsDecorator == nil {
		return s.tokens.IssuePair(identity)
	}
	return s.tokens.IssuePairDecorated(ctx, identity, s.claimsDecorator)
}

// SessionFromToken builds a session from a validated access token.
func (s Auther) SessionFromToken(raw string) (Session, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokens.AccessValidator()
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed", "error", err)
		return nil, err
	}

	session, err := sessionFromClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims", "error", err)
		return nil, err
	}

	return session, nil
}

func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())
	if err != nil {
		s.logger.Error("IdentityFromSession find identity by identifier: %s", err)
		return nil, err
	}

	return identity, nil
}

func (s *Auther) persistRefreshToken(ctx context.Context, userID, refreshToken string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "identity id is not a valid uuid")
	}

	if err := s.sessions.StoreRefreshTokenHash(ctx, id, HashToken(refreshToken)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store refresh token digest")
	}

	return nil
}

// refreshTokenMatches compares digests in constant time. An empty stored
// digest means the session was revoked.
func refreshTokenMatches(user *User, refreshToken string) bool {
	if user == nil || user.RefreshTokenHash == "" {
		return false
	}

	digest := HashToken(refreshToken)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(user.RefreshTokenHash)) == 1
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "user",
	}
}
