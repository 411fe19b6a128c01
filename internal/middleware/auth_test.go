package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fileops/internal/model"
)

type staticValidator struct {
	token string
}

func (v staticValidator) ValidateToken(token string) (*model.AuthClaims, error) {
	if token != v.token {
		return nil, errors.New("bad token")
	}
	return &model.AuthClaims{Subject: "cli"}, nil
}

func TestRequireAuth(t *testing.T) {
	var seen *model.AuthClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewAuthMiddleware(staticValidator{token: "good"}).RequireAuth(next)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{name: "missing header", setup: func(*http.Request) {}, status: http.StatusUnauthorized},
		{name: "wrong scheme", setup: func(r *http.Request) { r.Header.Set("Authorization", "Basic good") }, status: http.StatusUnauthorized},
		{name: "bad token", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, status: http.StatusUnauthorized},
		{name: "bearer", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, status: http.StatusNoContent},
		{name: "query token", setup: func(r *http.Request) { r.URL.RawQuery = "token=good" }, status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/operations", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, "cli", seen.Subject)
			}
		})
	}
}

func TestRequireAuthDisabled(t *testing.T) {
	handler := NewAuthMiddleware(nil).RequireAuth(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/trash", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
