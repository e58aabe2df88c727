package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"net/url"

	"github.com/mkendall/stride/internal/models"
	"github.com/mkendall/stride/internal/strava"
)

// StravaAuth holds dependencies for the OAuth handshake handlers.
type StravaAuth struct {
	DB          *sql.DB
	OAuth       *strava.OAuth
	Tokens      *strava.TokenManager
	ClientID    string
	RedirectURI string
	AuthorizeURL string // "" selects the production endpoint
}

// Connect handles GET /strava/connect: redirects the athlete to the
// provider's authorization page.
func (h *StravaAuth) Connect(w http.ResponseWriter, r *http.Request) {
	user := athleteFromRequest(h.DB, w, r)
	if user == nil {
		return
	}

	base := h.AuthorizeURL
	if base == "" {
		base = "https://www.strava.com/oauth/authorize"
	}

	q := url.Values{}
	q.Set("client_id", h.ClientID)
	q.Set("redirect_uri", h.RedirectURI)
	q.Set("response_type", "code")
	q.Set("approval_prompt", "auto")
	q.Set("scope", "activity:read_all")
	q.Set("state", r.FormValue("user_id"))

	http.Redirect(w, r, base+"?"+q.Encode(), http.StatusFound)
}

// Callback handles GET /strava/callback: exchanges the authorization code
// for a token triple, stores it, and records the provider athlete id.
func (h *StravaAuth) Callback(w http.ResponseWriter, r *http.Request) {
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		writeError(w, http.StatusBadRequest, "authorization denied: "+errMsg)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	// The state parameter carries the athlete id through the handshake.
	r.Form = url.Values{"user_id": {r.URL.Query().Get("state")}}
	user := athleteFromRequest(h.DB, w, r)
	if user == nil {
		return
	}

	tok, err := h.OAuth.ExchangeCode(r.Context(), code)
	if err != nil {
		log.Printf("handlers: strava code exchange for athlete %d: %v", user.ID, err)
		writeError(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	if err := models.UpdateStravaTokens(h.DB, user.ID, tok.AccessToken, tok.RefreshToken, tok.ExpiresAt); err != nil {
		log.Printf("handlers: store strava tokens for athlete %d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	// The athlete object is optional on the token response; a bare triple
	// still connects.
	var stravaAthleteID int64
	if tok.Athlete != nil {
		stravaAthleteID = tok.Athlete.ID
	}
	if stravaAthleteID != 0 {
		if err := models.SetStravaAthleteID(h.DB, user.ID, stravaAthleteID); err != nil {
			log.Printf("handlers: store strava athlete id for athlete %d: %v", user.ID, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connected":         true,
		"strava_athlete_id": stravaAthleteID,
	})
}

// Status handles GET /api/strava/status: the structured token condition.
func (h *StravaAuth) Status(w http.ResponseWriter, r *http.Request) {
	user := athleteFromRequest(h.DB, w, r)
	if user == nil {
		return
	}

	st, err := h.Tokens.Status(user.ID)
	if err != nil {
		log.Printf("handlers: strava status for athlete %d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
