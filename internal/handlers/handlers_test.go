package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/mkendall/stride/internal/database"
	"github.com/mkendall/stride/internal/models"
	"github.com/mkendall/stride/internal/strava"
)

func testDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testUser(t testing.TB, db *sql.DB) *models.User {
	t.Helper()

	u, err := models.CreateUser(db, "handlers@example.com", "test-password")
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return u
}

func formID(u *models.User) string {
	return strconv.FormatInt(u.ID, 10)
}

func postForm(handler http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestStravaCallback(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)

	callback := func(tokenBody string) *httptest.ResponseRecorder {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(tokenBody))
		}))
		defer srv.Close()

		h := &StravaAuth{DB: db, OAuth: strava.NewOAuth("id", "secret", srv.URL)}
		req := httptest.NewRequest("GET", "/strava/callback?code=abc&state="+formID(user), nil)
		w := httptest.NewRecorder()
		h.Callback(w, req)
		return w
	}

	t.Run("bare token triple connects without an athlete object", func(t *testing.T) {
		w := callback(`{"access_token": "at", "refresh_token": "rt", "expires_at": 9999999999}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body)
		}
		if !strings.Contains(w.Body.String(), `"strava_athlete_id":0`) {
			t.Errorf("body = %s, want athlete id 0", w.Body)
		}
		u, _ := models.GetUserByID(db, user.ID)
		if !u.HasStravaCredentials() {
			t.Error("tokens not stored")
		}
	})

	t.Run("athlete id stored when present", func(t *testing.T) {
		w := callback(`{"access_token": "at2", "refresh_token": "rt2", "expires_at": 9999999999, "athlete": {"id": 777}}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body)
		}
		if !strings.Contains(w.Body.String(), `"strava_athlete_id":777`) {
			t.Errorf("body = %s, want athlete id 777", w.Body)
		}
	})
}

func TestScheduledSyncAuth(t *testing.T) {
	h := &Sync{DB: testDB(t)}

	req := httptest.NewRequest("POST", "/tasks/sync", nil)
	w := httptest.NewRecorder()
	h.ScheduledSync(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d without the scheduler header, want 401", w.Code)
	}
}

func TestAthleteFromRequest(t *testing.T) {
	db := testDB(t)
	h := &Settings{DB: db}

	t.Run("missing user_id", func(t *testing.T) {
		w := postForm(h.UpdateHR, url.Values{})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("unknown athlete", func(t *testing.T) {
		w := postForm(h.UpdateHR, url.Values{"user_id": {"9999"}})
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

func TestUpdateHR(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	h := &Settings{DB: db}
	id := formID(user)

	t.Run("valid update", func(t *testing.T) {
		w := postForm(h.UpdateHR, url.Values{
			"user_id": {id}, "resting_hr": {"48"}, "max_hr": {"188"}, "gender": {"female"},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body)
		}
		u, _ := models.GetUserByID(db, user.ID)
		if u.RestingHR != 48 || u.MaxHR != 188 || u.Gender != "female" {
			t.Errorf("stored params = %d/%d/%s", u.RestingHR, u.MaxHR, u.Gender)
		}
	})

	t.Run("bad gender", func(t *testing.T) {
		w := postForm(h.UpdateHR, url.Values{
			"user_id": {id}, "resting_hr": {"48"}, "max_hr": {"188"}, "gender": {"other"},
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("max below resting", func(t *testing.T) {
		w := postForm(h.UpdateHR, url.Values{
			"user_id": {id}, "resting_hr": {"188"}, "max_hr": {"48"}, "gender": {"male"},
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestUpdateCoaching(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	h := &Settings{DB: db}
	id := formID(user)

	t.Run("valid update", func(t *testing.T) {
		w := postForm(h.UpdateCoaching, url.Values{
			"user_id":                 {id},
			"recommendation_style":    {models.RiskAggressive},
			"coaching_style_spectrum": {"80"},
			"timezone":                {"America/Denver"},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body)
		}
		u, _ := models.GetUserByID(db, user.ID)
		if u.RecommendationStyle != models.RiskAggressive || u.CoachingStyleSpectrum != 80 || u.Timezone != "America/Denver" {
			t.Errorf("stored prefs = %s/%d/%s", u.RecommendationStyle, u.CoachingStyleSpectrum, u.Timezone)
		}
	})

	t.Run("unknown style", func(t *testing.T) {
		w := postForm(h.UpdateCoaching, url.Values{
			"user_id": {id}, "recommendation_style": {"yolo"}, "coaching_style_spectrum": {"50"},
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("spectrum out of range", func(t *testing.T) {
		w := postForm(h.UpdateCoaching, url.Values{
			"user_id": {id}, "recommendation_style": {models.RiskBalanced}, "coaching_style_spectrum": {"120"},
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestUpdateACWR(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	h := &Settings{DB: db}
	id := formID(user)

	w := postForm(h.UpdateACWR, url.Values{
		"user_id": {id}, "enabled": {"true"}, "chronic_days": {"42"}, "decay_rate": {"0.1"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	u, _ := models.GetUserByID(db, user.ID)
	if !u.ACWREnhancedEnabled || u.ACWRChronicDays != 42 || u.ACWRDecayRate != 0.1 {
		t.Errorf("stored config = %v/%d/%v", u.ACWREnhancedEnabled, u.ACWRChronicDays, u.ACWRDecayRate)
	}

	t.Run("unparsable values keep current config", func(t *testing.T) {
		w := postForm(h.UpdateACWR, url.Values{
			"user_id": {id}, "enabled": {"true"}, "chronic_days": {"abc"}, "decay_rate": {"xyz"},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body)
		}
		u, _ := models.GetUserByID(db, user.ID)
		if u.ACWRChronicDays != 42 || u.ACWRDecayRate != 0.1 {
			t.Errorf("config changed on bad input: %d/%v", u.ACWRChronicDays, u.ACWRDecayRate)
		}
	})
}
