package shared

import (
	"log/slog"
	"net/http"
)

// RoleMiddleware gates routes on the session role.
type RoleMiddleware struct {
	Logger *slog.Logger
}

// RequireAuth rejects anonymous requests.
func (m RoleMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		if !sess.Authenticated() {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireManager rejects requests whose session lacks the manager role.
func (m RoleMiddleware) RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		if !sess.Authenticated() {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if sess.Role() != RoleManager {
			if m.Logger != nil {
				m.Logger.Warn("role check failed", slog.String("path", r.URL.Path), slog.String("role", string(sess.Role())))
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
