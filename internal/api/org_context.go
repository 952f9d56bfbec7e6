package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/httputil"
)

// Identity headers set by the upstream auth layer. The API trusts them and
// never authenticates on its own.
const (
	HeaderAdminUID  = "X-Admin-UID"
	HeaderAdminRole = "X-Admin-Role"

	RoleAdmin = "admin"
)

// AdminContextKey is the key for storing the caller identity
type AdminContextKey struct{}

// AdminContext holds the verified admin identity of a request.
type AdminContext struct {
	UID  string
	Role string
}

// RequireAdmin rejects requests without an admin uid with 401. When
// requireRole is set, callers whose role is not admin get 403.
func RequireAdmin(requireRole bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := strings.TrimSpace(r.Header.Get(HeaderAdminUID))
			if uid == "" {
				httputil.Unauthorized(w, "missing admin identity")
				return
			}
			role := strings.TrimSpace(r.Header.Get(HeaderAdminRole))
			if requireRole && !strings.EqualFold(role, RoleAdmin) {
				httputil.Forbidden(w, "admin role required")
				return
			}
			ctx := context.WithValue(r.Context(), AdminContextKey{}, &AdminContext{UID: uid, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminFromContext returns the identity stored by RequireAdmin.
func AdminFromContext(ctx context.Context) (*AdminContext, bool) {
	a, ok := ctx.Value(AdminContextKey{}).(*AdminContext)
	return a, ok && a != nil
}
