package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
)

// TokenPair bundles the two tokens minted at session start.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenIssuer pairs the access and refresh token services. Both secrets and
// TTLs come from the injected Config, never from process globals.
type TokenIssuer struct {
	access  TokenService
	refresh TokenService
}

// NewTokenIssuer builds a TokenIssuer from the host configuration.
func NewTokenIssuer(cfg Config, logger Logger) *TokenIssuer {
	if logger == nil {
		logger = defLogger{}
	}

	return &TokenIssuer{
		access: NewTokenService(
			[]byte(cfg.GetAccessTokenSecret()),
			cfg.GetAccessTokenTTL(),
			cfg.GetIssuer(),
			cfg.GetAudience(),
			TokenUseAccess,
			logger,
		),
		refresh: NewTokenService(
			[]byte(cfg.GetRefreshTokenSecret()),
			cfg.GetRefreshTokenTTL(),
			cfg.GetIssuer(),
			cfg.GetAudience(),
			TokenUseRefresh,
			logger,
		),
	}
}

// IssueAccessToken mints a short-lived token carrying the full identity
// claims: id, email, username, fullname.
func (ti *TokenIssuer) IssueAccessToken(identity Identity) (string, error) {
	return ti.access.Issue(identity)
}

// IssueRefreshToken mints a longer-lived token carrying only the identity.
func (ti *TokenIssuer) IssueRefreshToken(identity Identity) (string, error) {
	return ti.refresh.Issue(identity)
}

// IssuePair mints both tokens for a session start. Nothing is persisted
// here; the caller decides whether and how to store the refresh token.
func (ti *TokenIssuer) IssuePair(identity Identity) (*TokenPair, error) {
	access, err := ti.IssueAccessToken(identity)
	if err != nil {
		return nil, err
	}

	refresh, err := ti.IssueRefreshToken(identity)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueAccessTokenDecorated mints an access token, letting the decorator
// extend the claims before signing. The registered claims, uid, and
// token_use are snapshotted first; a decorator that mutates them fails the
// issuance with ErrImmutableClaimMutation.
func (ti *TokenIssuer) IssueAccessTokenDecorated(ctx context.Context, identity Identity, decorator ClaimsDecorator) (string, error) {
	claims, err := ti.access.NewClaims(identity)
	if err != nil {
		return "", err
	}

	snapshot := captureImmutableClaims(claims)

	if err := normalizeClaimsDecorator(decorator).Decorate(ctx, identity, claims); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "claims decorator failed")
	}

	if err := snapshot.validate(claims); err != nil {
		return "", err
	}

	return ti.access.SignClaims(claims)
}

// IssuePairDecorated mints both tokens, applying the decorator to the
// access-token claims only. Refresh tokens never carry extension claims.
func (ti *TokenIssuer) IssuePairDecorated(ctx context.Context, identity Identity, decorator ClaimsDecorator) (*TokenPair, error) {
	access, err := ti.IssueAccessTokenDecorated(ctx, identity, decorator)
	if err != nil {
		return nil, err
	}

	refresh, err := ti.IssueRefreshToken(identity)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ValidateAccessToken validates a token against the access secret.
func (ti *TokenIssuer) ValidateAccessToken(token string) (SessionClaims, error) {
	return ti.access.Validate(token)
}

// ValidateRefreshToken validates a token against the refresh secret.
func (ti *TokenIssuer) ValidateRefreshToken(token string) (SessionClaims, error) {
	return ti.refresh.Validate(token)
}

// AccessValidator exposes the access-token side as a TokenValidator.
func (ti *TokenIssuer) AccessValidator() TokenValidator {
	return ti.access
}

// HashToken returns the hex SHA-256 digest of a token. We persist digests,
// not raw refresh tokens, so a repository compromise does not yield usable
// sessions.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
