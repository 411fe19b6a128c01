package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *APIError
		code   string
		status int
	}{
		{"bad request", BadRequest("ids must not be empty", "ids"), CodeBadRequest, http.StatusBadRequest},
		{"unauthorized", Unauthorized("invalid token"), CodeUnauthorized, http.StatusUnauthorized},
		{"not configured", NotConfigured("history disabled", ""), CodeNotConfigured, http.StatusNotFound},
		{"invalid filename", InvalidFilename("filename is too long", "x"), CodeInvalidFilename, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "BAD_REQUEST: ids must not be empty (ids)", BadRequest("ids must not be empty", "ids").Error())
	assert.Equal(t, "UNAUTHORIZED: invalid token", Unauthorized("invalid token").Error())

	var nilErr *APIError
	assert.Empty(t, nilErr.Error())
}

func TestFrom(t *testing.T) {
	wrapped := fmt.Errorf("rename: %w", InvalidFilename("filename cannot contain a path separator", "a/b"))

	apiErr, ok := From(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidFilename, apiErr.Code)
	assert.Equal(t, "a/b", apiErr.Details)

	_, ok = From(errors.New("plain"))
	assert.False(t, ok)
}
