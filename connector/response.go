package connector

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hupe1980/gatemesh/core"
	"github.com/hupe1980/gatemesh/middleware"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps gateway errors to HTTP status codes. Anything not otherwise
// classified is treated as the store being unavailable.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, middleware.ErrInvalidSessionRecord):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
