package query

import (
	"context"
	"fmt"
	"time"
)

type RoleFilter struct {
	PageRequest
	Code           string
	Status         string
	Keyword        string
	IncludeDeleted bool
}

type RoleRow struct {
	ID          int64      `db:"id" json:"id"`
	Code        string     `db:"code" json:"code"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	Status      string     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

var roleSortColumns = map[string]string{
	"id":         "id",
	"code":       "code",
	"name":       "name",
	"created_at": "created_at",
}

func (f *Facade) ListRoles(ctx context.Context, filter RoleFilter) (*Page[RoleRow], error) {
	w := &where{}
	if !filter.IncludeDeleted {
		w.add("deleted_at IS NULL")
	}
	if filter.Code != "" {
		w.add("code = ?", filter.Code)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.Keyword != "" {
		kw := like(filter.Keyword)
		w.add("(code LIKE ? OR name LIKE ?)", kw, kw)
	}

	page, err := list[RoleRow](ctx, f.db, "roles",
		"id, code, name, description, status, created_at, updated_at, deleted_at",
		w, filter.orderBy(roleSortColumns, "id"), filter.PageRequest)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return page, nil
}
