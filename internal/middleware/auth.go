package middleware

import (
	"encoding/json"
	"net/http"
)

// AdminCookieName is the trust-on-presence admin session cookie. Its value is
// always "1"; possession of the cookie is the whole session state.
const AdminCookieName = "admin_auth"

// AdminCookieValue is the only value the gate accepts.
const AdminCookieValue = "1"

// IsAdmin reports whether the request carries a valid admin session cookie.
func IsAdmin(r *http.Request) bool {
	c, err := r.Cookie(AdminCookieName)
	return err == nil && c.Value == AdminCookieValue
}

// RequireAdmin gates admin endpoints on the presence of the admin cookie.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"ok":    false,
				"error": "admin session required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
