package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	UserID      string `json:"user_id"`
	NewPassword string `json:"new_password"`
}

func (e ChangePasswordMessage) Type() string { return "user.password.change" }

// Validate will run validation rules
func (e ChangePasswordMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.UserID, validation.Required),
		validation.Field(&e.NewPassword, validation.Required, validation.Length(8, 100)),
	)
}

type ChangePasswordHandler struct {
	repo   RepositoryManager
	cfg    Config
	sink   ActivitySink
	logger Logger
}

// NewChangePasswordHandler creates a handler with sane defaults.
func NewChangePasswordHandler(repo RepositoryManager, cfg Config) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:   repo,
		cfg:    cfg,
		sink:   noopActivitySink{},
		logger: defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password change events.
func (h *ChangePasswordHandler) WithActivitySink(sink ActivitySink) *ChangePasswordHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password change payload")
	}

	var user *User
	var changed bool
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByIdentifierTx(ctx, tx, event.UserID)
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve user for password change")
		}

		// Same plaintext keeps the stored hash byte-for-byte identical.
		if err := ComparePasswordAndHash(event.NewPassword, user.PasswordHash); err == nil {
			return nil
		}

		hash, err := HashPasswordWithCost(event.NewPassword, h.hashCost())
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid new password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash new password")
		}

		if err := h.repo.Users().UpdatePasswordTx(ctx, tx, user.ID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password")
		}

		user.PasswordHash = hash
		changed = true

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password change transaction failed")
	}

	// a no-op change leaves no audit trail
	if changed {
		h.recordActivity(ctx, user)
	}

	return nil
}

func (h *ChangePasswordHandler) hashCost() int {
	if h.cfg == nil {
		return 0
	}
	return h.cfg.GetHashCost()
}

func (h *ChangePasswordHandler) recordActivity(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID:     user.ID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.sink).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password change: %v", err)
	}
}
