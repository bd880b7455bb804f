package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func authedServer(cfg AuthConfig) http.Handler {
	return Auth(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuth(t *testing.T) {
	cfg := AuthConfig{Token: "s3cret", SkipPaths: []string{"/health"}}
	srv := authedServer(cfg)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"valid token", "/api/credentials", "Bearer s3cret", http.StatusOK},
		{"wrong token", "/api/credentials", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "/api/credentials", "", http.StatusUnauthorized},
		{"not bearer", "/api/credentials", "Token s3cret", http.StatusUnauthorized},
		{"skip path", "/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuthEmptyConfiguredTokenRejectsAll(t *testing.T) {
	srv := authedServer(AuthConfig{Token: ""})

	req := httptest.NewRequest(http.MethodGet, "/api/credentials", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
