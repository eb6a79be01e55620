package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. Username and email are unique, and all three
// human-readable fields are normalized (lowercase, trimmed) before they hit
// the store. PasswordHash only ever holds bcrypt output, RefreshTokenHash
// only ever holds a SHA-256 digest of the latest refresh token.
type User struct {
	bun.BaseModel    `bun:"table:users,alias:usr"`
	ID               uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username         string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email            string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Fullname         string     `bun:"fullname,notnull" json:"fullname,omitempty"`
	AvatarURL        string     `bun:"avatar_url,notnull" json:"avatar_url,omitempty"`
	CoverImageURL    string     `bun:"cover_image_url" json:"cover_image_url,omitempty"`
	PasswordHash     string     `bun:"password_hash,notnull" json:"-"`
	RefreshTokenHash string     `bun:"refresh_token_hash" json:"-"`
	LoginAttempts    int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt   *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt       *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt        *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt        *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*User)(nil)

// BeforeAppendModel keeps created_at/updated_at current on every insert and
// update that goes through bun.
func (u *User) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now()
	switch query.(type) {
	case *bun.InsertQuery:
		if u.CreatedAt == nil {
			u.CreatedAt = &now
		}
		u.UpdatedAt = &now
	case *bun.UpdateQuery:
		u.UpdatedAt = &now
	}
	return nil
}

// Normalize folds username, email, and fullname to their canonical stored
// form. It must run before any uniqueness check or persistence.
func (u *User) Normalize() *User {
	u.Username = NormalizeIdentityField(u.Username)
	u.Email = NormalizeIdentityField(u.Email)
	u.Fullname = NormalizeIdentityField(u.Fullname)
	return u
}

// HasActiveRefreshToken reports whether a session is currently active, i.e.
// a refresh token digest is stored for the record.
func (u *User) HasActiveRefreshToken() bool {
	return u.RefreshTokenHash != ""
}

// Identity adapts the record to the Identity interface used by the token
// issuer and authenticator.
func (u *User) Identity() Identity {
	return userIdentity{
		id:       u.ID.String(),
		username: u.Username,
		email:    u.Email,
		fullname: u.Fullname,
	}
}

// NormalizeIdentityField lowercases and trims surrounding whitespace.
func NormalizeIdentityField(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type userIdentity struct {
	id       string
	username string
	email    string
	fullname string
}

func (a userIdentity) ID() string       { return a.id }
func (a userIdentity) Username() string { return a.username }
func (a userIdentity) Email() string    { return a.email }
func (a userIdentity) Fullname() string { return a.fullname }

var _ Identity = userIdentity{}

// WatchHistoryEntry is one ordered entry in a user's watch history. The
// video reference is weak: the Video lifecycle lives outside this module, we
// only keep its identifier for lookup.
type WatchHistoryEntry struct {
	bun.BaseModel `bun:"table:watch_history,alias:wh"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull" json:"user_id,omitempty"`
	VideoID       uuid.UUID  `bun:"video_id,notnull" json:"video_id,omitempty"`
	Position      int        `bun:"position,notnull" json:"position"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*WatchHistoryEntry)(nil)

func (w *WatchHistoryEntry) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && w.CreatedAt == nil {
		now := time.Now()
		w.CreatedAt = &now
	}
	return nil
}
