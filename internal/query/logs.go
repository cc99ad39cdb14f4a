package query

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/user-management/internal"
	"gorm.io/datatypes"
)

type LogFilter struct {
	PageRequest
	ActorUserID *int64
	TargetTable string
	TargetID    string
	Action      string
	RequestID   string
	Keyword     string
	From        *time.Time
	To          *time.Time
}

type LogRow struct {
	ID          int64           `db:"id" json:"id"`
	ActorUserID *int64          `db:"actor_user_id" json:"actor_user_id,omitempty"`
	TargetTable string          `db:"target_table" json:"target_table"`
	TargetID    string          `db:"target_id" json:"target_id"`
	Action      string          `db:"action" json:"action"`
	Message     string          `db:"message" json:"message"`
	Detail      *datatypes.JSON `db:"detail" json:"detail,omitempty"`
	RequestID   *string         `db:"request_id" json:"request_id,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

const logColumns = "id, actor_user_id, target_table, target_id, action, message, detail, request_id, created_at"

var logSortColumns = map[string]string{
	"id":         "id",
	"created_at": "created_at",
	"action":     "action",
}

func (f *Facade) ListLogs(ctx context.Context, filter LogFilter) (*Page[LogRow], error) {
	w := &where{}
	if filter.ActorUserID != nil {
		w.add("actor_user_id = ?", *filter.ActorUserID)
	}
	if filter.TargetTable != "" {
		w.add("target_table = ?", filter.TargetTable)
	}
	if filter.TargetID != "" {
		w.add("target_id = ?", filter.TargetID)
	}
	if filter.Action != "" {
		w.add("action = ?", filter.Action)
	}
	if filter.RequestID != "" {
		w.add("request_id = ?", filter.RequestID)
	}
	if filter.Keyword != "" {
		w.add("message LIKE ?", like(filter.Keyword))
	}
	if filter.From != nil {
		w.add("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		w.add("created_at <= ?", *filter.To)
	}

	page, err := list[LogRow](ctx, f.db, "logs", logColumns, w, filter.orderBy(logSortColumns, "id"), filter.PageRequest)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return page, nil
}

func (f *Facade) GetLog(ctx context.Context, id int64) (*LogRow, error) {
	w := &where{}
	w.add("id = ?", id)
	row, err := one[LogRow](ctx, f.db, "logs", logColumns, w,
		internal.NewNotFoundError("log not found", internal.ErrCodeLogNotFound))
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	return row, nil
}
