package auth

import (
	"encoding/json"
	"net/http"

	"github.com/sakif/microblog/internal/session"
)

// The gates below read the session State that session.Manager.Middleware put
// in the request context, so they must be mounted after it.

// RequireLogin guards browser pages: anonymous visitors are redirected to
// loginPath instead of receiving an error status.
func RequireLogin(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !session.FromContext(r.Context()).Authenticated() {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLoginJSON guards routes called from page scripts. They get a
// {"success":false} payload they can act on, never a redirect.
func RequireLoginJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).Authenticated() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"message": "login required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePendingIdentity guards the second phase of Google registration:
// only sessions holding a fingerprint from the OAuth callback may pick a
// username.
func RequirePendingIdentity(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session.FromContext(r.Context()).PendingFingerprint == "" {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
