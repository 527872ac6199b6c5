package middleware

import (
	"net/http"
	"slices"

	"github.com/agromart/agromart-backend/api/responses"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
)

// RequireRole must run after Auth. Callers outside allowed get FORBIDDEN.
func RequireRole(logg *logger.Logger, allowed ...enums.UserRole) func(http.Handler) http.Handler {
	forbidden := pkgerrors.New(pkgerrors.CodeForbidden, "role required")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if role := RoleFromContext(r.Context()); role == "" || !slices.Contains(allowed, role) {
				responses.WriteError(r.Context(), logg, w, forbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
