package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/mkendall/stride/internal/strava"
	"github.com/mkendall/stride/internal/syncer"
)

// Sync holds dependencies for the sync trigger handlers.
type Sync struct {
	DB     *sql.DB
	Syncer *syncer.Syncer
}

// UserSync handles POST /api/sync: a user-initiated sync over a trailing
// window (days parameter, default 7). Client disconnect cancels between
// processing steps via the request context.
func (h *Sync) UserSync(w http.ResponseWriter, r *http.Request) {
	user := athleteFromRequest(h.DB, w, r)
	if user == nil {
		return
	}

	days := syncer.DefaultWindowDays
	if raw := r.FormValue("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 90 {
			writeError(w, http.StatusBadRequest, "days must be an integer in [1,90]")
			return
		}
		days = n
	}

	res, err := h.Syncer.SyncUser(r.Context(), user, days)
	if errors.Is(err, strava.ErrReauthRequired) {
		writeError(w, http.StatusConflict, "Strava re-authorization required")
		return
	}
	if err != nil {
		log.Printf("handlers: sync for athlete %d: %v", user.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  err.Error(),
			"result": res,
		})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ScheduledSync handles POST /tasks/sync: the scheduler fan-out over all
// connected athletes. Guarded by the X-Cloudscheduler header; anything else
// is rejected.
func (h *Sync) ScheduledSync(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Cloudscheduler") != "true" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := h.Syncer.SyncAll(r.Context(), syncer.DefaultWindowDays)
	if err != nil {
		log.Printf("handlers: scheduled sync: %v", err)
		writeError(w, http.StatusInternalServerError, "sync fan-out failed")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
