package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSON sends data as a JSON body with the given status. Marshalling
// happens before the header is written, so a value that cannot be encoded
// still yields a well-formed 500 instead of a truncated 2xx body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("marshal response body", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal_error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("write response body", "error", err)
	}
}

// ErrorResponse is the JSON error body: a stable machine-readable code and
// an optional human-readable message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
