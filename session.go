package identity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session holds attributes that are part of an auth session
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetData() map[string]any
}

var _ Session = &SessionObject{}

type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	Audience       []string       `json:"audience,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// GetEmail returns the email carried by an access-token session, if any.
func (s *SessionObject) GetEmail() string {
	return s.dataString("email")
}

// GetUsername returns the username carried by an access-token session, if any.
func (s *SessionObject) GetUsername() string {
	return s.dataString("username")
}

// GetFullname returns the fullname carried by an access-token session, if any.
func (s *SessionObject) GetFullname() string {
	return s.dataString("fullname")
}

func (s *SessionObject) dataString(key string) string {
	if s.Data == nil {
		return ""
	}
	if v, ok := s.Data[key].(string); ok {
		return v
	}
	return ""
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s aud=%v iss=%s iat=%s data=%v",
		s.UserID,
		s.Audience,
		s.Issuer,
		issuedAt,
		s.Data,
	)
}

// sessionFromClaims creates a SessionObject from validated claims.
func sessionFromClaims(claims SessionClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToParseData
	}

	data := make(map[string]any)
	if claims.Email() != "" {
		data["email"] = claims.Email()
	}
	if claims.Username() != "" {
		data["username"] = claims.Username()
	}
	if claims.Fullname() != "" {
		data["fullname"] = claims.Fullname()
	}
	if claims.Use() != "" {
		data["token_use"] = claims.Use()
	}

	var audience []string
	var issuer string
	if jwtClaims, ok := claims.(*JWTClaims); ok {
		audience = append(audience, jwtClaims.RegisteredClaims.Audience...)
		issuer = jwtClaims.RegisteredClaims.Issuer
	}
	if issuer == "" {
		issuer = claims.Subject()
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	return &SessionObject{
		UserID:         claims.UserID(),
		Audience:       audience,
		Issuer:         issuer,
		Data:           data,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}
