package middleware

import (
	"encoding/json"
	"net/http"

	"go-fileops/internal/model"
)

// writeJSONError writes the error envelope. Headers the caller needs must be
// set before it is called.
func writeJSONError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse(code, message, ""))
}
