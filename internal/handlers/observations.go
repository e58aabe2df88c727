package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/mkendall/stride/internal/coach"
	"github.com/mkendall/stride/internal/models"
)

// Observations holds dependencies for the daily-journal handlers.
type Observations struct {
	DB    *sql.DB
	Coach *coach.Coach
}

func formInt(r *http.Request, key string) (int, bool) {
	n, err := strconv.Atoi(r.FormValue(key))
	return n, err == nil
}

// Save handles POST /api/observations: validates and stores the athlete's
// subjective observations for a date, then runs the autopsy and feedback
// loop for that date.
func (h *Observations) Save(w http.ResponseWriter, r *http.Request) {
	user := athleteFromRequest(h.DB, w, r)
	if user == nil {
		return
	}

	date := r.FormValue("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "missing date")
		return
	}
	energy, ok := formInt(r, "energy_level")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid energy_level")
		return
	}
	rpe, ok := formInt(r, "rpe_score")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid rpe_score")
		return
	}
	pain, ok := formInt(r, "pain_percentage")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid pain_percentage")
		return
	}

	entry, err := models.UpsertJournalEntry(h.DB, user.ID, date, energy, rpe, pain, r.FormValue("notes"))
	if errors.Is(err, models.ErrInvalidObservation) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Printf("handlers: save observations for athlete %d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	autopsy, err := h.Coach.ProcessObservations(r.Context(), user, date)
	if err != nil {
		log.Printf("handlers: observation follow-up for athlete %d date %s: %v", user.ID, date, err)
	}

	resp := map[string]any{
		"saved": true,
		"date":  entry.Date,
	}
	if autopsy != nil {
		resp["alignment_score"] = autopsy.AlignmentScore
	}
	writeJSON(w, http.StatusOK, resp)
}
