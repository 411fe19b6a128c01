package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go-fileops/internal/model"
	"go-fileops/pkg/apierror"
)

const defaultRequestTimeout = 30 * time.Second

// Timeout bounds request handling. The websocket stream cannot sit behind
// it because http.TimeoutHandler does not support hijacking.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	body, _ := json.Marshal(model.ErrorResponse(apierror.CodeRequestTimeout, "request timed out after "+timeout.String(), ""))
	message := string(body)

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, message)
	}
}
