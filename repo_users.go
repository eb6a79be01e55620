package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var UpdateUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var StoreRefreshTokenHashSQL = `UPDATE "users" AS "usr"
SET
	"refresh_token_hash" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error)
	FindByUsernameOrEmailTx(ctx context.Context, tx bun.IDB, username, email string) (*User, error)

	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	StoreRefreshTokenHash(ctx context.Context, id uuid.UUID, digest string) error
	StoreRefreshTokenHashTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest string) error
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
	ClearRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error

	AppendWatchHistory(ctx context.Context, userID, videoID uuid.UUID) (*WatchHistoryEntry, error)
	AppendWatchHistoryTx(ctx context.Context, tx bun.IDB, userID, videoID uuid.UUID) (*WatchHistoryEntry, error)
	GetWatchHistory(ctx context.Context, userID uuid.UUID) ([]*WatchHistoryEntry, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	return a.CreateTx(ctx, tx, user)
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

// CreateTx normalizes and defaults the record before insert. Uniqueness is
// owned by the store's unique indexes on username/email; a violation comes
// back from the driver and is translated here, we never check-then-insert.
func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)

	created, err := a.Repository.CreateTx(ctx, tx, record, criteria...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, goerrors.Wrap(err, ErrDuplicateIdentity.Category, ErrDuplicateIdentity.Message).
				WithTextCode(ErrDuplicateIdentity.TextCode)
		}
		return nil, err
	}

	return created, nil
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	options := resolveUserIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &User{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) FindByUsernameOrEmail(ctx context.Context, username, email string) (*User, error) {
	return a.FindByUsernameOrEmailTx(ctx, a.db, username, email)
}

// FindByUsernameOrEmailTx looks up a record by either handle, normalized the
// same way they are stored.
func (a *users) FindByUsernameOrEmailTx(ctx context.Context, tx bun.IDB, username, email string) (*User, error) {
	username = NormalizeIdentityField(username)
	email = NormalizeIdentityField(email)

	record := &User{}
	err := tx.NewSelect().Model(record).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.username = ?", username).
				WhereOr("?TableAlias.email = ?", email)
		}).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"username": username,
					"email":    email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.UpdatePasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, UpdateUserPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) StoreRefreshTokenHash(ctx context.Context, id uuid.UUID, digest string) error {
	return a.StoreRefreshTokenHashTx(ctx, a.db, id, digest)
}

func (a *users) StoreRefreshTokenHashTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest string) error {
	res, err := a.Repository.RawTx(ctx, tx, StoreRefreshTokenHashSQL, digest, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	return a.ClearRefreshTokenTx(ctx, a.db, id)
}

// ClearRefreshTokenTx moves the session to its revoked state: no stored
// digest means no refresh token will verify until the next login.
func (a *users) ClearRefreshTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return a.StoreRefreshTokenHashTx(ctx, tx, id, "")
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	// NOTE: raw SQL because an ORM update with zero values would not reset
	// login_attempt_at and login_attempts.
	loggedInAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, loggedInAt, user.ID).Exec(ctx)

	return err
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, user)
}

func (a *users) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	now := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"login_attempts" = ?,
			"login_attempt_at" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, user.LoginAttempts+1, now, user.ID).Exec(ctx)

	return err
}

func (a *users) AppendWatchHistory(ctx context.Context, userID, videoID uuid.UUID) (*WatchHistoryEntry, error) {
	return a.AppendWatchHistoryTx(ctx, a.db, userID, videoID)
}

// AppendWatchHistoryTx appends a video reference at the end of the user's
// ordered history.
func (a *users) AppendWatchHistoryTx(ctx context.Context, tx bun.IDB, userID, videoID uuid.UUID) (*WatchHistoryEntry, error) {
	var maxPosition int
	err := tx.NewSelect().
		Model((*WatchHistoryEntry)(nil)).
		ColumnExpr("COALESCE(MAX(position), 0)").
		Where("?TableAlias.user_id = ?", userID).
		Scan(ctx, &maxPosition)
	if err != nil && !repository.IsRecordNotFound(err) {
		return nil, err
	}

	entry := &WatchHistoryEntry{
		ID:       uuid.New(),
		UserID:   userID,
		VideoID:  videoID,
		Position: maxPosition + 1,
	}

	if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
		return nil, err
	}

	return entry, nil
}

func (a *users) GetWatchHistory(ctx context.Context, userID uuid.UUID) ([]*WatchHistoryEntry, error) {
	var entries []*WatchHistoryEntry
	err := a.db.NewSelect().
		Model(&entries).
		Where("?TableAlias.user_id = ?", userID).
		Order("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// prepareUserDefaults assigns an id when missing and folds the identity
// fields to their canonical form. This is the single normalization point
// before persistence.
func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Normalize()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	normalized := NormalizeIdentityField(trimmed)

	if isEmail(normalized) {
		options = append(options, identifierOption{
			column: "email",
			value:  normalized,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  normalized,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
