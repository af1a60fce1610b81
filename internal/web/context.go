package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/flatsheet/internal/core"
	"github.com/JonMunkholm/flatsheet/internal/logging"
)

type sessionKey struct{}

// sessionID returns the session resolved by the sessions middleware.
func sessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// withRequestMetadata adds the client address and user agent for the
// upload history.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, clientIP(r), r.UserAgent())
}

// sessions resolves the session cookie, creating a fresh session when the
// cookie is missing or its session has expired.
func (s *Server) sessions(next http.Handler) http.Handler {
	name := s.cfg.Session.CookieName
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(name); err == nil {
			if _, err := s.service.Session(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = s.service.NewSession()
			http.SetCookie(w, &http.Cookie{
				Name:     name,
				Value:    id,
				Path:     "/",
				MaxAge:   int(s.cfg.Session.TTL.Seconds()),
				HttpOnly: true,
				Secure:   s.cfg.Session.SecureCookie,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, id)
		ctx = logging.WithSessionID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
