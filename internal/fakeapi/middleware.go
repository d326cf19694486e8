package fakeapi

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const emailKey ctxKey = iota

// authMiddleware resolves the bearer token, if any. Unknown tokens are
// treated as anonymous; requireAuth rejects them.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if ok {
			s.mu.Lock()
			email, found := s.tokens[strings.TrimSpace(token)]
			s.mu.Unlock()
			if found {
				r = r.WithContext(context.WithValue(r.Context(), emailKey, email))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// echoRequestID copies the caller's X-Request-ID onto the response.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r)
	})
}

func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if emailFromContext(r.Context()) == "" {
			respondError(w, http.StatusUnauthorized, "Authentification requise")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectedFailure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f := s.failNext
		s.failNext = nil
		s.mu.Unlock()

		if f != nil {
			respondError(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func emailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(emailKey).(string)
	return email
}
