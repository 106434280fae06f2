package middleware

import (
	"net/http"

	"github.com/holdfast/auth-service/internal/domain"
)

// RequireAtLeast enforces role hierarchy: admin >= setter >= user.
// Anonymous requests get token_missing; Authenticate must run first.
func RequireAtLeast(minRole string, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserIDFromContext(r.Context()); !ok {
				writeErr(w, r, domain.ErrTokenMissing())
				return
			}

			role, _ := RoleFromContext(r.Context())
			if !domain.IsValidRole(role) || !domain.IsValidRole(minRole) {
				writeErr(w, r, domain.ErrForbidden())
				return
			}

			if domain.RoleRank(role) < domain.RoleRank(minRole) {
				writeErr(w, r, domain.ErrInsufficientRole(minRole))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
