package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// jsonMessage writes a 200 response with a human-readable message.
func jsonMessage(w http.ResponseWriter, message string) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok", "message": message})
}

// jsonData wraps a list in the "data" envelope used by search endpoints.
func jsonData(w http.ResponseWriter, data any) {
	jsonResponse(w, http.StatusOK, map[string]any{"data": data})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
