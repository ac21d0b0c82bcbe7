package web

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// WriteJSON writes data as a JSON response.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode JSON response")
	}
}

// WriteError writes {"error": message}.
func WriteError(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteJSON(w, r, status, map[string]string{"error": message})
}
