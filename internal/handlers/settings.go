package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/mkendall/stride/internal/models"
)

// Settings holds dependencies for the athlete-settings handlers.
type Settings struct {
	DB *sql.DB
}

// UpdateHR handles POST /api/settings/hr: resting HR, max HR, and the
// gender used by the TRIMP coefficient.
func (h *Settings) UpdateHR(w http.ResponseWriter, r *http.Request) {
	user := athleteFromRequest(h.DB, w, r)
	if user == nil {
		return
	}

	resting, ok1 := formInt(r, "resting_hr")
	maxHR, ok2 := formInt(r, "max_hr")
	gender := r.FormValue("gender")
	if !ok1 || !ok2 || (gender != "male" && gender != "female") {
		writeError(w, http.StatusBadRequest, "invalid HR parameters")
		return
	}

	if err := models.UpdateHRParams(h.DB, user.ID, resting, maxHR, gender); err != nil {
		if strings.Contains(err.Error(), "invalid HR params") {
			writeError(w, http.StatusBadRequest, "max HR must exceed resting HR")
			return
		}
		log.Printf("handlers: update HR params for athlete %d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

// UpdateCoaching handles POST /api/settings/coaching: risk tolerance, tone
// spectrum, and time zone.
func (h *Settings) UpdateCoaching(w http.ResponseWriter, r *http.Request) {
	user := athleteFromRequest(h.DB, w, r)
	if user == nil {
		return
	}

	style := r.FormValue("recommendation_style")
	switch style {
	case models.RiskConservative, models.RiskBalanced, models.RiskAdaptive, models.RiskAggressive:
	default:
		writeError(w, http.StatusBadRequest, "invalid recommendation_style")
		return
	}

	spectrum, ok := formInt(r, "coaching_style_spectrum")
	if !ok || spectrum < 0 || spectrum > 100 {
		writeError(w, http.StatusBadRequest, "coaching_style_spectrum must be in [0,100]")
		return
	}

	tz := r.FormValue("timezone")
	if tz == "" {
		tz = user.Timezone
	}

	if err := models.UpdateCoachingPrefs(h.DB, user.ID, style, spectrum, tz); err != nil {
		log.Printf("handlers: update coaching prefs for athlete %d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

// UpdateACWR handles POST /api/settings/acwr: the enhanced-engine flag,
// chronic window, and decay rate.
func (h *Settings) UpdateACWR(w http.ResponseWriter, r *http.Request) {
	user := athleteFromRequest(h.DB, w, r)
	if user == nil {
		return
	}

	enabled := r.FormValue("enabled") == "true"
	chronicDays, ok := formInt(r, "chronic_days")
	if !ok {
		chronicDays = user.ACWRChronicDays
	}
	decay, err := strconv.ParseFloat(r.FormValue("decay_rate"), 64)
	if err != nil {
		decay = user.ACWRDecayRate
	}

	if err := models.UpdateACWRConfig(h.DB, user.ID, enabled, chronicDays, decay); err != nil {
		log.Printf("handlers: update acwr config for athlete %d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}
