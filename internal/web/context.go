package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/explorer/internal/core"
	"github.com/JonMunkholm/explorer/internal/web/middleware"
)

type sessionKey struct{}

// sessionCtx resolves {sessionID} and stores the session in the request
// context. Unknown or expired sessions get 404.
func (s *Server) sessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.service.Session(chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *core.Session {
	return r.Context().Value(sessionKey{}).(*core.Session)
}

// withClient attaches the caller's address and user agent for operation logs.
func withClient(r *http.Request) context.Context {
	return core.WithClient(r.Context(), core.Client{
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
}
