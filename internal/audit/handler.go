package audit

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/query"
	"github.com/frahmantamala/user-management/internal/transport"
	"github.com/frahmantamala/user-management/pkg/logger"
)

type QueryAPI interface {
	ListLogs(ctx context.Context, filter query.LogFilter) (*query.Page[query.LogRow], error)
	GetLog(ctx context.Context, id int64) (*query.LogRow, error)
}

// Handler exposes the audit trail read-only.
type Handler struct {
	*transport.BaseHandler
	Query QueryAPI
}

func NewHandler(q QueryAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Query:       q,
	}
}

// ListLogs handles GET /logs
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	from, err := parseTime(values, "from")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	to, err := parseTime(values, "to")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	page, err := h.Query.ListLogs(r.Context(), query.LogFilter{
		PageRequest: query.ParsePageRequest(values),
		ActorUserID: query.ParseInt64(values, "actor_user_id"),
		TargetTable: values.Get("target_table"),
		TargetID:    values.Get("target_id"),
		Action:      values.Get("action"),
		RequestID:   values.Get("request_id"),
		Keyword:     values.Get("keyword"),
		From:        from,
		To:          to,
	})
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

// GetLog handles GET /logs/{id}
func (h *Handler) GetLog(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	row, err := h.Query.GetLog(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, row)
}

func parseTime(values url.Values, key string) (*time.Time, error) {
	raw := values.Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, internal.NewValidationFieldError(key, key+" must be an RFC 3339 timestamp", internal.ErrCodeInvalidDate)
	}
	return &t, nil
}
