package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/learning-platform/internal/platform/api"
)

// RoleAdmin may read and write learner state on behalf of any user.
const RoleAdmin = "admin"

// WithRole injects role into context. Useful for testing.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole{}, role)
}

// IsAdmin reports whether RequireUser injected the admin role.
func IsAdmin(ctx context.Context) bool {
	role, _ := RoleFromContext(ctx)
	return strings.EqualFold(strings.TrimSpace(role), RoleAdmin)
}

// CanActFor reports whether the authenticated caller may touch userID's
// records: the user themselves, or an admin.
func CanActFor(ctx context.Context, userID string) bool {
	if IsAdmin(ctx) {
		return true
	}
	uid, ok := UserIDFromContext(ctx)
	return ok && uid != "" && uid == userID
}

// RequireAdmin allows request only if RequireUser already injected role=admin into context.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			api.Forbidden(w, "FORBIDDEN", "admin role required", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
