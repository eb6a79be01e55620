package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	WatchHistory() repository.Repository[*WatchHistoryEntry]
}

func NewWatchHistoryRepository(db *bun.DB) repository.Repository[*WatchHistoryEntry] {
	handlers := repository.ModelHandlers[*WatchHistoryEntry]{
		NewRecord: func() *WatchHistoryEntry {
			return &WatchHistoryEntry{}
		},
		GetID: func(record *WatchHistoryEntry) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *WatchHistoryEntry, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "video_id"
		},
	}
	return repository.NewRepository(db, handlers)
}

type mngr struct {
	db           *bun.DB
	users        Users
	watchHistory repository.Repository[*WatchHistoryEntry]
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:           db,
		users:        NewUsersRepository(db),
		watchHistory: NewWatchHistoryRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.watchHistory == nil {
		return errors.New("repository watchHistory should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) WatchHistory() repository.Repository[*WatchHistoryEntry] {
	return m.watchHistory
}
