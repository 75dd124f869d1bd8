package api

import (
	"net/http"
	"strings"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/session"
)

// SessionToken moves a bearer token from the request into the context, where
// session.TokenFrom picks it up ahead of the configured provider. Requests
// without one fall through unchanged.
func SessionToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if strings.HasPrefix(auth, prefix) {
			if tok := strings.TrimSpace(auth[len(prefix):]); tok != "" {
				r = r.WithContext(session.WithToken(r.Context(), tok))
			}
		}
		next.ServeHTTP(w, r)
	})
}
