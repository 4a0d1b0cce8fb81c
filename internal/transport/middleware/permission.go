package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/employee"
)

// RequireRoles gates a route on the actor holding one of the given roles.
func RequireRoles(roles ...employee.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := internal.ActorFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			for _, role := range roles {
				if employee.Role(actor.Role) == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			slog.Warn("access denied: role not permitted",
				"employee_id", actor.ID,
				"role", actor.Role,
				"path", r.URL.Path)
			http.Error(w, "Forbidden: insufficient role", http.StatusForbidden)
		})
	}
}

// RequireDecider gates a route on a role that sits in the approval hierarchy.
func RequireDecider(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := internal.ActorFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !employee.CanDecide(employee.Role(actor.Role)) {
			http.Error(w, "Forbidden: insufficient role", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
