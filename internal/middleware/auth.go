package middleware

import (
	"encoding/json"
	"net/http"

	"streamhub/internal/auth"
	"streamhub/internal/store"
)

const sessionCookieName = "streamhub_session"

// RequireAuth validates the session cookie and populates AuthContext.
// API consumers get a JSON 401 rather than a redirect; the client decides
// whether to surface a sign-in prompt.
func RequireAuth(sessionStore *store.SessionStore, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			sess, err := sessionStore.GetByToken(token)
			if err != nil || sess == nil {
				unauthorized(w)
				return
			}

			user, err := userStore.GetByID(sess.UserID)
			if err != nil || user == nil {
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				UserID:    sess.UserID,
				Username:  user.Username,
				SessionID: sess.ID,
			}
			if m := metaFrom(r.Context()); m != nil {
				m.user = user.Username
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionToken reads the session token from the cookie, falling back to a
// bearer Authorization header for non-browser clients.
func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// SessionCookieName returns the cookie name used for sessions.
func SessionCookieName() string {
	return sessionCookieName
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"message": "authentication required"},
	})
}
