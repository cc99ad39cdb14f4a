package role

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/query"
	"github.com/frahmantamala/user-management/internal/transport"
	"github.com/frahmantamala/user-management/pkg/logger"
)

type ServiceAPI interface {
	CreateRole(ctx context.Context, in CreateRoleInput, actorID *int64) (*Role, error)
	UpdateRole(ctx context.Context, id int64, patch RolePatch, actorID *int64) (*Role, error)
	SoftDeleteRole(ctx context.Context, id int64, actorID *int64) error
	RestoreRole(ctx context.Context, id int64, actorID *int64) (*Role, error)
	GetRole(ctx context.Context, id int64, includeDeleted bool) (*Role, error)
}

type QueryAPI interface {
	ListRoles(ctx context.Context, filter query.RoleFilter) (*query.Page[query.RoleRow], error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Query   QueryAPI
}

func NewHandler(svc ServiceAPI, q QueryAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Query:       q,
	}
}

// ListRoles handles GET /roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	page, err := h.Query.ListRoles(r.Context(), query.RoleFilter{
		PageRequest:    query.ParsePageRequest(values),
		Code:           values.Get("code"),
		Status:         values.Get("status"),
		Keyword:        values.Get("keyword"),
		IncludeDeleted: values.Get("include_deleted") == "true",
	})
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

// CreateRole handles POST /roles
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var in CreateRoleInput
	if err := h.DecodeJSON(r, &in); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if err := in.Validate(); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	role, err := h.Service.CreateRole(r.Context(), in, internal.ActorIDFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, role)
}

// GetRole handles GET /roles/{id}
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	role, err := h.Service.GetRole(r.Context(), id, r.URL.Query().Get("include_deleted") == "true")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, role)
}

// UpdateRole handles PATCH /roles/{id}
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var patch RolePatch
	if err := h.DecodeJSON(r, &patch); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if err := patch.Validate(); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	role, err := h.Service.UpdateRole(r.Context(), id, patch, internal.ActorIDFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, role)
}

// DeleteRole handles DELETE /roles/{id}
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.SoftDeleteRole(r.Context(), id, internal.ActorIDFromContext(r.Context())); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreRole handles POST /roles/{id}/restore
func (h *Handler) RestoreRole(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	role, err := h.Service.RestoreRole(r.Context(), id, internal.ActorIDFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, role)
}
