// Package middleware provides the HTTP middleware stack.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/wolfchat/wolfchat/internal/app/services/sessions"
	"github.com/wolfchat/wolfchat/internal/httputil"
	"github.com/wolfchat/wolfchat/internal/logging"
	"github.com/wolfchat/wolfchat/internal/session"
)

// SessionAuth resolves the session cookie (or bearer token) into a request
// identity. Requests without a valid session continue anonymously; handlers
// that need a login wrap themselves with RequireUser.
type SessionAuth struct {
	sessions *sessions.Service
	logger   *logging.Logger
}

// NewSessionAuth creates the session middleware.
func NewSessionAuth(sessionsSvc *sessions.Service, logger *logging.Logger) *SessionAuth {
	return &SessionAuth{sessions: sessionsSvc, logger: logger}
}

// Token extracts the session token from the request, preferring the
// Authorization header over the cookie.
func Token(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(authHeader[len("Bearer "):])
	}
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Handler returns the middleware handler.
func (m *SessionAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := Token(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := m.sessions.Authenticate(r.Context(), token)
		if err != nil {
			// Stale or forged cookie; the request proceeds anonymously.
			m.logger.WithContext(r.Context()).WithError(err).Debug("session rejected")
			next.ServeHTTP(w, r)
			return
		}

		ctx := logging.WithUser(r.Context(), sess.UserID, sess.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the authenticated user id from the context.
func GetUserID(ctx context.Context) string {
	return logging.GetUserID(ctx)
}

// GetUsername extracts the authenticated username from the context.
func GetUsername(ctx context.Context) string {
	return logging.GetUsername(ctx)
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			httputil.Unauthorized(w, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
