package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
)

// Identity cookie set by the login page.
const identityCookie = "connectra_user"

var usernameRe = regexp.MustCompile(`^\w{1,64}$`)

// Identity resolves the acting user from the X-Username header, the
// connectra_user cookie or the username query parameter, in that order,
// and puts it in the request context. Requests with no usable identity
// get a JSON 401.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.Header.Get("X-Username"))
		if username == "" {
			if c, err := r.Cookie(identityCookie); err == nil {
				username = strings.TrimSpace(c.Value)
			}
		}
		if username == "" {
			username = strings.TrimSpace(r.URL.Query().Get("username"))
		}
		if !usernameRe.MatchString(username) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), UsernameKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
