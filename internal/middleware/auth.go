// Package middleware provides HTTP middleware for the cockpit API.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
	"github.com/netopscockpit/cockpit/internal/pkg/response"
)

// AuthConfig holds authentication middleware configuration.
type AuthConfig struct {
	// Token is the static bearer token API clients must present.
	Token string
	// SkipPaths are paths that don't require authentication.
	SkipPaths []string
}

// Auth returns a bearer-token authentication middleware. Tokens are
// compared in constant time.
func Auth(cfg AuthConfig) func(next http.Handler) http.Handler {
	skipPaths := make(map[string]bool)
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.Error(w, apierrors.ErrUnauthorized)
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")

			if cfg.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				response.Error(w, apierrors.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
