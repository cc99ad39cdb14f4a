package query

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/user-management/internal"
)

type ProfileFilter struct {
	PageRequest
	UserID  *int64
	Phone   string
	Keyword string
}

type ProfileRow struct {
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	FullName  *string    `db:"full_name" json:"full_name,omitempty"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Email     *string    `db:"email" json:"email,omitempty"`
	AvatarURL *string    `db:"avatar_url" json:"avatar_url,omitempty"`
	Address   *string    `db:"address" json:"address,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

const profileColumns = "id, user_id, full_name, phone, email, avatar_url, address, created_at, updated_at, deleted_at"

var profileSortColumns = map[string]string{
	"id":         "id",
	"user_id":    "user_id",
	"full_name":  "full_name",
	"created_at": "created_at",
}

// ListProfiles lists live profiles.
func (f *Facade) ListProfiles(ctx context.Context, filter ProfileFilter) (*Page[ProfileRow], error) {
	w := &where{}
	w.add("deleted_at IS NULL")
	if filter.UserID != nil {
		w.add("user_id = ?", *filter.UserID)
	}
	if filter.Phone != "" {
		w.add("phone = ?", filter.Phone)
	}
	if filter.Keyword != "" {
		kw := like(filter.Keyword)
		w.add("(full_name LIKE ? OR phone LIKE ? OR email LIKE ?)", kw, kw, kw)
	}

	page, err := list[ProfileRow](ctx, f.db, "profiles", profileColumns, w, filter.orderBy(profileSortColumns, "id"), filter.PageRequest)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return page, nil
}

// GetProfile returns one profile. Deleted profiles are found only with includeDeleted.
func (f *Facade) GetProfile(ctx context.Context, id int64, includeDeleted bool) (*ProfileRow, error) {
	w := &where{}
	w.add("id = ?", id)
	if !includeDeleted {
		w.add("deleted_at IS NULL")
	}
	row, err := one[ProfileRow](ctx, f.db, "profiles", profileColumns, w,
		internal.NewNotFoundError("profile not found", internal.ErrCodeProfileNotFound))
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return row, nil
}
