package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenUse tags a token with the class it was minted for.
type TokenUse = string

const (
	// TokenUseAccess marks short-lived tokens that authorize resource access.
	TokenUseAccess TokenUse = "access"
	// TokenUseRefresh marks longer-lived tokens used only to mint new access tokens.
	TokenUseRefresh TokenUse = "refresh"
)

// SessionClaims represents validated JWT claims
type SessionClaims interface {
	Subject() string
	UserID() string
	Email() string
	Username() string
	Fullname() string
	Use() TokenUse
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of SessionClaims. Access tokens
// carry the full identity payload; refresh tokens set only UID/sub and the
// token_use marker, everything else stays empty and is omitted on the wire.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID          string `json:"uid,omitempty"`
	UserEmail    string `json:"email,omitempty"`
	UserName     string `json:"username,omitempty"`
	UserFullname string `json:"fullname,omitempty"`
	TokenUse     string `json:"token_use,omitempty"`

	// Extension fields, populated by a ClaimsDecorator when configured.
	Resources map[string]string `json:"resources,omitempty"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
}

// Verify interface compliance
var _ SessionClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Email returns the email claim, empty for refresh tokens
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Username returns the username claim, empty for refresh tokens
func (c *JWTClaims) Username() string {
	return c.UserName
}

// Fullname returns the fullname claim, empty for refresh tokens
func (c *JWTClaims) Fullname() string {
	return c.UserFullname
}

// Use returns the token class marker
func (c *JWTClaims) Use() TokenUse {
	return c.TokenUse
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
