package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/transport"
	"github.com/frahmantamala/user-management/pkg/logger"
)

// RoleAdmin is the role code allowed to mutate the user administration tables.
const RoleAdmin = "admin"

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	Principal(ctx context.Context, claims *Claims) (*Principal, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	tokens, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, tokens)
}

// RefreshToken handles POST /auth/refresh
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	tokens, err := h.Service.RefreshTokens(r.Context(), dto.RefreshToken)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, tokens)
}

// Me handles GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.NewUnauthorizedError("authentication required", internal.ErrCodeMissingToken))
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

// AuthMiddleware validates the bearer token and stores the principal and its id in the context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.HandleServiceError(w, r, internal.NewUnauthorizedError("missing authorization token", internal.ErrCodeMissingToken))
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.HandleServiceError(w, r, err)
			return
		}

		p, err := h.Service.Principal(r.Context(), claims)
		if err != nil {
			h.HandleServiceError(w, r, err)
			return
		}

		ctx := internal.ContextWithUserID(r.Context(), strconv.FormatInt(p.ID, 10))
		ctx = ContextWithPrincipal(ctx, p)
		ctx = logger.With(ctx, "user_id", p.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
