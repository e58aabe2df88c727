// Package handlers is the JSON API surface: sync triggers, the Strava
// OAuth handshake, observations, and recommendation access. The athlete id
// arrives as an explicit parameter on every route.
package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/mkendall/stride/internal/models"
)

// writeJSON renders a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handlers: encode response: %v", err)
	}
}

// writeError renders a JSON error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// athleteFromRequest resolves the athlete named by the user_id parameter
// (query or form). Writes the error response itself and returns nil on
// failure.
func athleteFromRequest(db *sql.DB, w http.ResponseWriter, r *http.Request) *models.User {
	raw := r.FormValue("user_id")
	if raw == "" {
		raw = r.URL.Query().Get("user_id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing user_id")
		return nil
	}

	user, err := models.GetUserByID(db, id)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "athlete not found")
		return nil
	}
	if err != nil {
		log.Printf("handlers: load athlete %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil
	}
	return user
}
