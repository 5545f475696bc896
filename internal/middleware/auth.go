package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/larderapp/larder/internal/auth"
	"github.com/larderapp/larder/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "larder_session"

// RequireAuth validates the session cookie and populates AuthContext.
// The API is consumed by the mobile app, so failures are JSON 401s, not
// login redirects.
func RequireAuth(sessions *store.SessionStore, users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			sess, err := sessions.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				unauthorized(w)
				return
			}

			user, err := users.GetByID(sess.UserID)
			if err != nil || user == nil {
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				UserID:    user.ID,
				UserUID:   user.UID,
				UserName:  user.Name,
				SessionID: sess.ID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
