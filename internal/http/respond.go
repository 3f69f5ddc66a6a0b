package httpx

import (
	"encoding/json"
	"net/http"
)

type errorPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeJSON writes a JSON response. Auth payloads carry identity, so nothing
// is cacheable.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	headers := w.Header()
	headers.Set("Content-Type", "application/json")
	headers.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorPayload{Error: msg})
}
