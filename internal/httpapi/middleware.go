package httpapi

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"

	"redish/server/internal/apperr"
	"redish/server/internal/session"

	"github.com/go-chi/chi/v5/middleware"
)

// SessionCookie carries the session token for browser clients. API clients
// may send the same token as a bearer token instead.
const SessionCookie = "redish.session_token"

type contextKey string

const (
	ctxIdentity     contextKey = "identity"
	ctxSessionToken contextKey = "session_token"
)

func identityFromContext(ctx context.Context) (session.Identity, bool) {
	id, ok := ctx.Value(ctxIdentity).(session.Identity)
	return id, ok
}

func sessionTokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxSessionToken).(string)
	return v
}

func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "Bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			return strings.TrimSpace(auth[len(prefix):])
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// sessionMiddleware attaches the caller's identity when the request carries
// a live session. Requests without one continue anonymously.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := s.sessions.Resolve(r.Context(), token)
		if err != nil {
			if apperr.Is(err, apperr.KindUnauthenticated) {
				next.ServeHTTP(w, r)
				return
			}
			respondError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxIdentity, id)
		ctx = context.WithValue(ctx, ctxSessionToken, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identityFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if entry := middleware.GetLogEntry(r); entry != nil {
					entry.Panic(rec, debug.Stack())
				}
				writeError(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
