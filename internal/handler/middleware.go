package handler

import (
	"net/http"
	"strings"

	"github.com/taskpage/taskpage/pkg/respond"
)

// RequireSession is the session guard: requests without an active session
// never reach the task screen. Browsers get redirected to the login
// boundary, API callers get a 401.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.sessions.Current() == nil {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				respond.Error(w, r, http.StatusUnauthorized, "no active session")
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
