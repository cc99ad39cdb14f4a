package user

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
	CreateUser(ctx context.Context, in CreateUserInput, actorID *int64) (*User, error)
	UpdateUser(ctx context.Context, id int64, patch UserPatch, actorID *int64) (*User, error)
	SoftDeleteUser(ctx context.Context, id int64, actorID *int64) error
	RestoreUser(ctx context.Context, id int64, actorID *int64) (*User, error)
	AssignRoles(ctx context.Context, userID int64, roleIDs []int64, actorID *int64) (*AssignResult, error)
	RemoveRole(ctx context.Context, userID, roleID int64, actorID *int64) error
	CreateProfile(ctx context.Context, userID int64, fields ProfileFields, actorID *int64) (*Profile, error)
	UpdateProfile(ctx context.Context, profileID int64, fields ProfileFields, actorID *int64) (*Profile, error)
	SoftDeleteProfile(ctx context.Context, profileID int64, actorID *int64) error
	RestoreProfile(ctx context.Context, profileID int64, actorID *int64) (*Profile, error)
	GetAggregate(ctx context.Context, id int64, includeDeleted bool) (*Aggregate, error)
}

type QueryAPI interface {
	ListUsers(ctx context.Context, filter query.UserFilter) (*query.Page[query.UserRow], error)
	ListProfiles(ctx context.Context, filter query.ProfileFilter) (*query.Page[query.ProfileRow], error)
	GetProfile(ctx context.Context, id int64, includeDeleted bool) (*query.ProfileRow, error)
}

// PasswordHasher turns a plain password into the hash the Service stores.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Query   QueryAPI
	Hasher  PasswordHasher
}

func NewHandler(svc ServiceAPI, q QueryAPI, hasher PasswordHasher) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Query:       q,
		Hasher:      hasher,
	}
}

// ListUsers handles GET /users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	filter := query.UserFilter{
		PageRequest:    query.ParsePageRequest(values),
		Username:       values.Get("username"),
		Email:          values.Get("email"),
		IsActive:       query.ParseBool(values, "is_active"),
		Keyword:        values.Get("keyword"),
		IncludeDeleted: values.Get("include_deleted") == "true",
		IncludeProfile: values.Get("include_profile") == "true",
		IncludeRoles:   values.Get("include_roles") == "true",
	}

	page, err := h.Query.ListUsers(r.Context(), filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

// CreateUser handles POST /users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var dto CreateUserDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	hash, err := h.Hasher.HashPassword(dto.Password)
	if err != nil {
		h.HandleServiceError(w, r, internal.NewInternalError("failed to hash password", err))
		return
	}

	u, err := h.Service.CreateUser(r.Context(), CreateUserInput{
		Username:     dto.Username,
		PasswordHash: hash,
		Email:        dto.Email,
		Profile:      dto.Profile,
		RoleIDs:      dto.RoleIDs,
	}, internal.ActorIDFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.Logger.Info("CreateUser: user created", "user_id", u.ID)
	h.WriteJSON(w, http.StatusCreated, u)
}

// Register handles POST /auth/register. The new account is created as a system
// action, so no actor is recorded on its log rows.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	hash, err := h.Hasher.HashPassword(dto.Password)
	if err != nil {
		h.HandleServiceError(w, r, internal.NewInternalError("failed to hash password", err))
		return
	}

	u, err := h.Service.CreateUser(r.Context(), CreateUserInput{
		Username:     dto.Username,
		PasswordHash: hash,
		Email:        dto.Email,
		Profile:      dto.Profile,
	}, nil)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.Logger.Info("Register: user registered", "user_id", u.ID)
	h.WriteJSON(w, http.StatusCreated, u)
}

// GetUser handles GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	agg, err := h.Service.GetAggregate(r.Context(), id, r.URL.Query().Get("include_deleted") == "true")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, agg)
}

// UpdateUser handles PATCH /users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto UpdateUserDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	patch := UserPatch{
		Username: dto.Username,
		Email:    dto.Email,
		IsActive: dto.IsActive,
		Profile:  dto.Profile,
	}
	if dto.Password != nil {
		hash, err := h.Hasher.HashPassword(*dto.Password)
		if err != nil {
			h.HandleServiceError(w, r, internal.NewInternalError("failed to hash password", err))
			return
		}
		patch.PasswordHash = &hash
	}

	u, err := h.Service.UpdateUser(r.Context(), id, patch, internal.ActorIDFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// DeleteUser handles DELETE /users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.SoftDeleteUser(r.Context(), id, internal.ActorIDFromContext(r.Context())); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreUser handles POST /users/{id}/restore
func (h *Handler) RestoreUser(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.RestoreUser(r.Context(), id, internal.ActorIDFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// AssignRoles handles POST /users/{id}/roles
func (h *Handler) AssignRoles(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto AssignRolesDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	result, err := h.Service.AssignRoles(r.Context(), id, dto.RoleIDs, internal.ActorIDFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

// RemoveRole handles DELETE /users/{id}/roles/{roleId}
func (h *Handler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	roleID, err := h.IDParam(r, "roleId")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.RemoveRole(r.Context(), id, roleID, internal.ActorIDFromContext(r.Context())); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProfiles handles GET /profiles
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	page, err := h.Query.ListProfiles(r.Context(), query.ProfileFilter{
		PageRequest: query.ParsePageRequest(values),
		UserID:      query.ParseInt64(values, "user_id"),
		Phone:       values.Get("phone"),
		Keyword:     values.Get("keyword"),
	})
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

// GetProfile handles GET /profiles/{id}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	p, err := h.Query.GetProfile(r.Context(), id, r.URL.Query().Get("include_deleted") == "true")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

// CreateProfile handles POST /users/{id}/profile
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var fields ProfileFields
	if err := h.DecodeJSON(r, &fields); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if err := fields.Validate(); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	p, err := h.Service.CreateProfile(r.Context(), id, fields, internal.ActorIDFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, p)
}

// UpdateProfile handles PATCH /profiles/{id}
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var fields ProfileFields
	if err := h.DecodeJSON(r, &fields); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if err := fields.Validate(); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	p, err := h.Service.UpdateProfile(r.Context(), id, fields, internal.ActorIDFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

// DeleteProfile handles DELETE /profiles/{id}
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.SoftDeleteProfile(r.Context(), id, internal.ActorIDFromContext(r.Context())); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreProfile handles POST /profiles/{id}/restore
func (h *Handler) RestoreProfile(w http.ResponseWriter, r *http.Request) {
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	p, err := h.Service.RestoreProfile(r.Context(), id, internal.ActorIDFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}
