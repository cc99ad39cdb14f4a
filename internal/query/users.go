package query

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type UserFilter struct {
	PageRequest
	Username       string
	Email          string
	IsActive       *bool
	Keyword        string
	IncludeDeleted bool
	IncludeProfile bool
	IncludeRoles   bool
}

type RoleRef struct {
	UserID int64  `db:"user_id" json:"-"`
	ID     int64  `db:"role_id" json:"id"`
	Code   string `db:"code" json:"code"`
	Name   string `db:"name" json:"name"`
}

type UserRow struct {
	ID        int64      `db:"id" json:"id"`
	Username  string     `db:"username" json:"username"`
	Email     *string    `db:"email" json:"email,omitempty"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	FullName  *string    `db:"full_name" json:"full_name,omitempty"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Roles     []RoleRef  `db:"-" json:"roles,omitempty"`
}

var userSortColumns = map[string]string{
	"id":         "u.id",
	"username":   "u.username",
	"email":      "u.email",
	"created_at": "u.created_at",
	"updated_at": "u.updated_at",
}

func (f *Facade) ListUsers(ctx context.Context, filter UserFilter) (*Page[UserRow], error) {
	w := &where{}
	if !filter.IncludeDeleted {
		w.add("u.deleted_at IS NULL")
	}
	if filter.Username != "" {
		w.add("u.username = ?", filter.Username)
	}
	if filter.Email != "" {
		w.add("u.email = ?", filter.Email)
	}
	if filter.IsActive != nil {
		w.add("u.is_active = ?", *filter.IsActive)
	}
	if filter.Keyword != "" {
		kw := like(filter.Keyword)
		w.add("(u.username LIKE ? OR u.email LIKE ?)", kw, kw)
	}

	from := "users u"
	columns := "u.id, u.username, u.email, u.is_active, u.created_at, u.updated_at, u.deleted_at"
	if filter.IncludeProfile {
		from += " LEFT JOIN profiles p ON p.user_id = u.id AND p.deleted_at IS NULL"
		columns += ", p.full_name, p.phone"
	}

	page, err := list[UserRow](ctx, f.db, from, columns, w, filter.orderBy(userSortColumns, "id"), filter.PageRequest)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	if filter.IncludeRoles && len(page.Data) > 0 {
		if err := f.attachRoles(ctx, page.Data); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// attachRoles loads the live roles of the listed users in one query.
func (f *Facade) attachRoles(ctx context.Context, users []UserRow) error {
	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	q, args, err := sqlx.In(`SELECT ur.user_id, r.id AS role_id, r.code, r.name
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id AND r.deleted_at IS NULL
WHERE ur.deleted_at IS NULL AND ur.user_id IN (?)
ORDER BY ur.user_id, r.id`, ids)
	if err != nil {
		return fmt.Errorf("build role query: %w", err)
	}

	var refs []RoleRef
	if err := f.db.SelectContext(ctx, &refs, f.db.Rebind(q), args...); err != nil {
		return fmt.Errorf("list user roles: %w", err)
	}

	byUser := make(map[int64][]RoleRef, len(users))
	for _, ref := range refs {
		byUser[ref.UserID] = append(byUser[ref.UserID], ref)
	}
	for i := range users {
		users[i].Roles = byUser[users[i].ID]
		if users[i].Roles == nil {
			users[i].Roles = []RoleRef{}
		}
	}
	return nil
}
