package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the error shape every endpoint answers with. Clients read the
// message from "error".
type ErrorBody struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

// WriteError writes {"error": message} with status.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteErrorDetails(w, status, message, nil)
}

// WriteErrorDetails is WriteError with a details payload.
func WriteErrorDetails(w http.ResponseWriter, status int, message string, details any) {
	body := ErrorBody{Error: message}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			body.Details = raw
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
