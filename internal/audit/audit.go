// Package audit appends one log row per mutation, inside the caller's transaction.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/frahmantamala/user-management/internal"
	auditDatamodel "github.com/frahmantamala/user-management/internal/core/datamodel/audit"
	"github.com/frahmantamala/user-management/internal/store"
	"github.com/frahmantamala/user-management/pkg/logger"
	"github.com/frahmantamala/user-management/pkg/redact"
	"gorm.io/datatypes"
)

// Entry describes one audited mutation. Detail is redacted before it is stored.
type Entry struct {
	ActorID  *int64
	Table    string
	TargetID string
	Action   auditDatamodel.Action
	Message  string
	Detail   interface{}
}

type Recorder struct {
	logger *slog.Logger
}

func NewRecorder(lg *slog.Logger) *Recorder {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &Recorder{logger: lg}
}

// Record writes the entry through tx so it commits or rolls back with the mutation.
func (r *Recorder) Record(ctx context.Context, tx *store.Tx, e Entry) error {
	row := &auditDatamodel.Log{
		ActorUserID: e.ActorID,
		TargetTable: e.Table,
		TargetID:    e.TargetID,
		Action:      e.Action,
		Message:     e.Message,
	}

	if e.Detail != nil {
		detail, err := encodeDetail(e.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode audit detail: %w", err)
		}
		row.Detail = detail
	}

	if reqID := internal.RequestIDFromContext(ctx); reqID != "" {
		row.RequestID = &reqID
	}

	if err := tx.Logs.Create(row); err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}

	r.logger.DebugContext(ctx, "audit log appended",
		"request_id", internal.RequestIDFromContext(ctx),
		"action", e.Action,
		"target_table", e.Table,
		"target_id", e.TargetID,
	)
	return nil
}

func encodeDetail(v interface{}) (datatypes.JSON, error) {
	redacted, err := redact.Struct(v)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(redacted)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func Target(id int64) string {
	return strconv.FormatInt(id, 10)
}

// LinkTarget identifies a user_roles row by its pair.
func LinkTarget(userID, roleID int64) string {
	return fmt.Sprintf("%d:%d", userID, roleID)
}
