package handler

import (
	"net/http"
	"strings"

	"go-fileops/internal/middleware"
	"go-fileops/internal/model"
	"go-fileops/internal/service"
	"go-fileops/pkg/apierror"
)

type AuthHandler struct {
	tokens *service.TokenService
}

func NewAuthHandler(tokens *service.TokenService) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

// IssueToken mints a fresh token for an authenticated caller. The subject
// defaults to the caller's own.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeError(w, apierror.NotConfigured("API tokens are disabled", "API_TOKEN_SECRET"))
		return
	}

	var payload model.IssueTokenRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, err)
			return
		}
	}

	subject := strings.TrimSpace(payload.Subject)
	if subject == "" {
		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, model.ErrUnauthorized)
			return
		}
		subject = claims.Subject
	}

	token, err := h.tokens.Issue(subject)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, token, nil)
}
