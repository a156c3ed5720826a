package middleware

import (
	"context"
	"net/http"

	"github.com/reelsync/backend/internal/reconcile"
	"github.com/reelsync/backend/pkg/response"
)

type contextKey string

const (
	SessionKey contextKey = "session"

	SessionHeader = "X-Session-ID"
	DeviceHeader  = "X-Device-ID"
)

// SessionStore looks up live app sessions.
type SessionStore interface {
	Get(id string) (*reconcile.Session, error)
}

// SessionMiddleware resolves the app session named by the X-Session-ID
// header. Browsers cannot set headers on WebSocket upgrades, so the
// "session" query parameter is accepted as well.
func SessionMiddleware(sessions SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if id == "" {
				id = r.URL.Query().Get("session")
			}
			if id == "" {
				response.Unauthorized(w, "missing session id")
				return
			}

			session, err := sessions.Get(id)
			if err != nil {
				response.Unauthorized(w, "unknown or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession extracts the app session from context
func GetSession(ctx context.Context) (*reconcile.Session, bool) {
	session, ok := ctx.Value(SessionKey).(*reconcile.Session)
	return session, ok
}
