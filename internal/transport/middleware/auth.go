package middleware

import (
	"net/http"
	"strings"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/auth"
	"github.com/hrcore/leave-management/pkg/logger"
)

// TokenValidator is the slice of the auth service this middleware needs.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*auth.Claims, error)
}

// Authenticator validates the bearer token and installs the acting employee
// into the request context. Everything behind it can assume an Actor exists.
func Authenticator(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateAccessToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			actor := internal.Actor{ID: claims.EmployeeID, Role: claims.Role}
			ctx := internal.ContextWithActor(r.Context(), actor)
			ctx = logger.With(ctx, "employee_id", actor.ID, "role", actor.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
