// Package store holds the typed accessors over the user administration tables and
// the transaction runner every mutating operation goes through.
package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/pkg/logger"
	"gorm.io/gorm"
)

// ErrNotFound is returned by repositories when no row matches. Managers translate it
// into a domain NotFound error with the right code.
var ErrNotFound = errors.New("record not found")

// Tx bundles the repositories bound to one database transaction.
type Tx struct {
	db        *gorm.DB
	Users     *UserRepository
	Profiles  *ProfileRepository
	Roles     *RoleRepository
	UserRoles *UserRoleRepository
	Logs      *LogRepository
}

func newTx(db *gorm.DB) *Tx {
	return &Tx{
		db:        db,
		Users:     NewUserRepository(db),
		Profiles:  NewProfileRepository(db),
		Roles:     NewRoleRepository(db),
		UserRoles: NewUserRoleRepository(db),
		Logs:      NewLogRepository(db),
	}
}

// DB exposes the transaction handle for collaborators such as the uniqueness guard.
func (t *Tx) DB() *gorm.DB {
	return t.db
}

// Runner executes units of work under a single transaction.
type Runner struct {
	db        *gorm.DB
	isolation sql.IsolationLevel
	timeout   time.Duration
	logger    *slog.Logger
}

type RunnerOption func(*Runner)

func WithIsolation(level sql.IsolationLevel) RunnerOption {
	return func(r *Runner) { r.isolation = level }
}

func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

func WithLogger(lg *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if lg != nil {
			r.logger = lg
		}
	}
}

func NewRunner(db *gorm.DB, opts ...RunnerOption) *Runner {
	r := &Runner{
		db:        db,
		isolation: sql.LevelRepeatableRead,
		timeout:   5 * time.Second,
		logger:    logger.LoggerWrapper(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DB returns the non-transactional handle, for reads outside a unit of work.
func (r *Runner) DB() *gorm.DB {
	return r.db
}

// InTx runs fn inside a transaction. Any error returned by fn, a panic, or a
// cancelled context rolls the whole unit back. The returned error is classified.
func (r *Runner) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	ctx, cancel := internal.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(newTx(gtx))
	}, &sql.TxOptions{Isolation: r.isolation})
	if err == nil {
		return nil
	}

	classified := Classify(err)
	if appErr, ok := internal.IsAppError(classified); ok {
		switch appErr.Type {
		case internal.ErrorTypeInternal:
			r.logger.ErrorContext(ctx, "transaction rolled back", "error", err)
		case internal.ErrorTypeCanceled:
			r.logger.DebugContext(ctx, "transaction abandoned by caller")
		}
	}
	return classified
}
