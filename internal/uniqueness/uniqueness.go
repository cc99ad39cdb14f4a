// Package uniqueness checks live rows for a value before an insert or update.
//
// The check is a fast path for a readable error. The partial unique indexes are
// the real guard: two transactions can both pass CheckUnique, and the loser then
// fails on the index, which store.Classify reports as the same Conflict.
package uniqueness

import (
	"context"
	"fmt"

	"github.com/frahmantamala/user-management/internal"
	"gorm.io/gorm"
)

type Field struct {
	table   string
	column  string
	code    internal.ErrorCode
	message string
}

var (
	UserUsername = Field{table: "users", column: "username", code: internal.ErrCodeUsernameExists, message: "username exists"}
	UserEmail    = Field{table: "users", column: "email", code: internal.ErrCodeEmailExists, message: "email exists"}
	ProfilePhone = Field{table: "profiles", column: "phone", code: internal.ErrCodePhoneExists, message: "phone exists"}
	RoleCode     = Field{table: "roles", column: "code", code: internal.ErrCodeRoleCodeExists, message: "role code exists"}
)

func (f Field) String() string {
	return f.table + "." + f.column
}

type Outcome int

const (
	NoConflict Outcome = iota
	Conflict
)

func (o Outcome) String() string {
	if o == Conflict {
		return "conflict"
	}
	return "no_conflict"
}

// CheckUnique looks for a live row holding value in field. excludeID skips the row
// being updated.
func CheckUnique(ctx context.Context, db *gorm.DB, field Field, value string, excludeID *int64) (Outcome, error) {
	q := db.WithContext(ctx).
		Table(field.table).
		Where(field.column+" = ? AND deleted_at IS NULL", value)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return NoConflict, fmt.Errorf("failed to check uniqueness of %s: %w", field, err)
	}
	if count > 0 {
		return Conflict, nil
	}
	return NoConflict, nil
}

// Require fails with a Conflict AppError when value is already taken.
func Require(ctx context.Context, db *gorm.DB, field Field, value string, excludeID *int64) error {
	outcome, err := CheckUnique(ctx, db, field, value, excludeID)
	if err != nil {
		return err
	}
	switch outcome {
	case Conflict:
		return internal.NewConflictError(field.message, field.code).
			WithDetails(map[string]string{"field": field.column, "value": value})
	case NoConflict:
		return nil
	default:
		return fmt.Errorf("unknown uniqueness outcome %d", outcome)
	}
}
