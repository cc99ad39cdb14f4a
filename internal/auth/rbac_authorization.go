package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/internal/transport"
)

type ctxKey string

const principalKey ctxKey = "principal"

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// RBACAuthorization gates routes on the role codes of the authenticated principal.
type RBACAuthorization struct {
	*transport.BaseHandler
}

func NewRBACAuthorization(logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{BaseHandler: transport.NewBaseHandler(logger)}
}

// RequireRole admits principals holding any of the given live role codes.
func (ra *RBACAuthorization) RequireRole(codes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				ra.Logger.WarnContext(r.Context(), "authorization check failed: principal not found in context")
				ra.HandleServiceError(w, r, internal.NewUnauthorizedError("authentication required", internal.ErrCodeMissingToken))
				return
			}

			if !p.HasAnyRole(codes) {
				ra.Logger.WarnContext(r.Context(), "access denied: insufficient role",
					"user_id", p.ID,
					"required_roles", codes,
					"user_roles", p.Roles)
				ra.HandleServiceError(w, r, internal.NewForbiddenError("insufficient role", internal.ErrCodeInsufficientRole))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (ra *RBACAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.RequireRole(RoleAdmin)
}
