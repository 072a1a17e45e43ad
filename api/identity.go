/*
identity.go - Caller identity middleware

PURPOSE:
  Upstream authentication (out of scope here) is expected to inject the
  caller's identity as headers on every request:

    X-User-ID        required
    X-Role           employee | manager | hr_manager | admin (default employee)
    X-Department-ID  required for managers (scopes their queries)

  The middleware parses them once and stashes a core.Identity in the
  request context. The engine itself never authenticates.
*/
package api

import (
	"context"
	"net/http"

	"github.com/warp/attendance-engine/core"
)

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity parses the identity headers and rejects requests without a
// caller.
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "X-User-ID header required", nil)
			return
		}

		role := core.RoleEmployee
		if s := r.Header.Get("X-Role"); s != "" {
			if !core.ValidRole(s) {
				writeError(w, http.StatusBadRequest, "unknown role in X-Role header", nil)
				return
			}
			role = core.Role(s)
		}

		ident := core.Identity{
			UserID:       userID,
			Role:         role,
			DepartmentID: r.Header.Get("X-Department-ID"),
		}

		ctx := context.WithValue(r.Context(), identityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identityFrom returns the Identity the middleware stored.
func identityFrom(r *http.Request) core.Identity {
	ident, _ := r.Context().Value(identityKey).(core.Identity)
	return ident
}
