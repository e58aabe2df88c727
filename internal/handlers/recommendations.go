package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/mkendall/stride/internal/coach"
	"github.com/mkendall/stride/internal/models"
)

// Recommendations holds dependencies for the coaching-guidance handlers.
type Recommendations struct {
	DB    *sql.DB
	Coach *coach.Coach
}

// Get handles GET /api/recommendations: the row for a given target date, or
// the latest one when no date is supplied.
func (h *Recommendations) Get(w http.ResponseWriter, r *http.Request) {
	user := athleteFromRequest(h.DB, w, r)
	if user == nil {
		return
	}

	var rec *models.Recommendation
	var err error
	if date := r.URL.Query().Get("date"); date != "" {
		rec, err = models.GetRecommendation(h.DB, user.ID, date)
	} else {
		rec, err = models.LatestRecommendation(h.DB, user.ID)
	}
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no recommendation available")
		return
	}
	if err != nil {
		log.Printf("handlers: get recommendation for athlete %d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, recommendationView(rec))
}

// Generate handles POST /api/recommendations: runs the recommendation
// pipeline now. A rest_day=true parameter targets tomorrow explicitly.
func (h *Recommendations) Generate(w http.ResponseWriter, r *http.Request) {
	user := athleteFromRequest(h.DB, w, r)
	if user == nil {
		return
	}

	restDay := r.FormValue("rest_day") == "true"
	rec, err := h.Coach.GenerateRecommendation(r.Context(), user, restDay)
	if err != nil {
		log.Printf("handlers: generate recommendation for athlete %d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, recommendationView(rec))
}

func recommendationView(rec *models.Recommendation) map[string]any {
	return map[string]any{
		"target_date":          rec.TargetDate,
		"generated_at":         rec.GeneratedAt,
		"daily_recommendation": rec.DailyRecommendation,
		"weekly_planning":      rec.WeeklyRecommendation,
		"pattern_insights":     rec.PatternInsights,
		"is_autopsy_informed":  rec.IsAutopsyInformed,
		"autopsy_count":        rec.AutopsyCount,
		"avg_alignment_score":  rec.AvgAlignmentScore,
	}
}
