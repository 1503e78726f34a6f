package errors

import (
	"encoding/json"
	"net/http"
)

// WriteError renders err as the standard failure envelope. Internal errors
// never expose their cause.
func WriteError(w http.ResponseWriter, err error) error {
	appErr := AsAppError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode())
	return json.NewEncoder(w).Encode(appErr.Response())
}
