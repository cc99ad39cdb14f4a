package store

import (
	"context"
	"errors"
	"strings"

	"github.com/frahmantamala/user-management/internal"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type conflictTarget struct {
	match   []string
	code    internal.ErrorCode
	message string
}

// Index and column names are matched against postgres constraint names and the
// sqlite "UNIQUE constraint failed: table.col" message.
var conflictTargets = []conflictTarget{
	{match: []string{"idx_users_username_live", "users.username"}, code: internal.ErrCodeUsernameExists, message: "username exists"},
	{match: []string{"idx_users_email_live", "users.email"}, code: internal.ErrCodeEmailExists, message: "email exists"},
	{match: []string{"idx_profiles_phone_live", "profiles.phone"}, code: internal.ErrCodePhoneExists, message: "phone exists"},
	{match: []string{"idx_profiles_user_live", "profiles.user_id"}, code: internal.ErrCodeProfileExists, message: "profile exists"},
	{match: []string{"idx_roles_code_live", "roles.code"}, code: internal.ErrCodeRoleCodeExists, message: "role code exists"},
	{match: []string{"idx_user_roles_pair_live", "user_roles.user_id"}, code: internal.ErrCodeDuplicateRecord, message: "role already assigned"},
}

// Classify maps a storage error onto the domain taxonomy. AppErrors pass through
// untouched so business outcomes raised inside a transaction keep their meaning.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := internal.IsAppError(err); ok {
		return err
	}

	switch {
	case IsDuplicate(err):
		return conflictFor(err)
	case IsTransient(err):
		return internal.NewTransientStorageError("storage temporarily unavailable, retry the operation", err)
	case errors.Is(err, context.DeadlineExceeded):
		return internal.NewTransientStorageError("operation timed out", err)
	case errors.Is(err, context.Canceled):
		return internal.NewCanceledError(err)
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return internal.NewNotFoundError("record not found", "NOT_FOUND").WithCause(err)
	default:
		return internal.NewInternalError("storage failure", err)
	}
}

// IsDuplicate reports whether err is a unique index violation.
func IsDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsTransient reports serialization failures and deadlocks, which are safe to retry.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func conflictFor(err error) *internal.AppError {
	subject := err.Error()
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName != "" {
		subject = pgErr.ConstraintName
	}
	for _, t := range conflictTargets {
		for _, m := range t.match {
			if strings.Contains(subject, m) {
				return internal.NewConflictError(t.message, t.code).WithCause(err)
			}
		}
	}
	return internal.NewConflictError("duplicate record", internal.ErrCodeDuplicateRecord).WithCause(err)
}
