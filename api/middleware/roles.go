package middleware

import (
	"net/http"
	"strings"

	"github.com/gulautos/storefront-backend/api/responses"
	"github.com/gulautos/storefront-backend/pkg/enums"
	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
	"github.com/gulautos/storefront-backend/pkg/logger"
)

// RequireRole lets the request through when the authenticated role is one of
// roles. It must run after Auth.
func RequireRole(role enums.UserRole, logg *logger.Logger, more ...enums.UserRole) func(http.Handler) http.Handler {
	allowed := append([]enums.UserRole{role}, more...)
	names := make([]string, 0, len(allowed))
	for _, r := range allowed {
		names = append(names, string(r))
	}
	message := strings.Join(names, " or ") + " role required"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := enums.UserRole(RoleFromContext(r.Context()))
			for _, a := range allowed {
				if current == a {
					next.ServeHTTP(w, r)
					return
				}
			}
			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"actor_role":    string(current),
					"required_role": names,
				})
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, message))
		})
	}
}
