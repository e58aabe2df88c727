package strava

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkendall/stride/internal/database"
	"github.com/mkendall/stride/internal/models"
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

	u, err := models.CreateUser(db, "strava@example.com", "test-password")
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return u
}

func setTokens(t testing.TB, db *sql.DB, athleteID int64, expiresAt time.Time) {
	t.Helper()
	if err := models.UpdateStravaTokens(db, athleteID, "access-1", "refresh-1", expiresAt.Unix()); err != nil {
		t.Fatalf("set tokens: %v", err)
	}
}

type recordingAlerter struct {
	mu     sync.Mutex
	titles []string
}

func (a *recordingAlerter) Alert(title, _ string) {
	a.mu.Lock()
	a.titles = append(a.titles, title)
	a.mu.Unlock()
}

func TestStateOf(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	mkUser := func(expiry time.Time) *models.User {
		return &models.User{
			StravaAccessToken:  sql.NullString{String: "a", Valid: true},
			StravaRefreshToken: sql.NullString{String: "r", Valid: true},
			StravaTokenExpires: sql.NullInt64{Int64: expiry.Unix(), Valid: true},
		}
	}

	cases := []struct {
		name string
		user *models.User
		want TokenState
	}{
		{"missing", &models.User{}, TokenMissing},
		{"valid", mkUser(now.Add(2 * time.Hour)), TokenValid},
		{"expiring soon", mkUser(now.Add(10 * time.Minute)), TokenExpiringSoon},
		{"expired", mkUser(now.Add(-time.Hour)), TokenExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stateOf(tc.user, now); got != tc.want {
				t.Errorf("stateOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClientForValidToken(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	setTokens(t, db, user.ID, time.Now().Add(6*time.Hour))

	// The token endpoint must never be touched for a live token.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("token endpoint called with a valid token on file")
	}))
	defer srv.Close()

	m := NewTokenManager(db, NewOAuth("id", "secret", srv.URL), "", nil)
	if _, err := m.ClientFor(context.Background(), user.ID); err != nil {
		t.Fatalf("client for: %v", err)
	}
}

func TestClientForMissingCredentials(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)

	m := NewTokenManager(db, NewOAuth("id", "secret", "http://invalid"), "", nil)
	if _, err := m.ClientFor(context.Background(), user.ID); !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("want ErrReauthRequired, got %v", err)
	}
}

func TestClientForRefreshesExpiredToken(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	setTokens(t, db, user.ID, time.Now().Add(-time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh-1" {
			t.Errorf("grant form = %v", r.Form)
		}
		w.Write([]byte(`{"access_token": "access-2", "refresh_token": "refresh-2", "expires_at": 2000000000}`))
	}))
	defer srv.Close()

	m := NewTokenManager(db, NewOAuth("id", "secret", srv.URL), "", nil)
	if _, err := m.ClientFor(context.Background(), user.ID); err != nil {
		t.Fatalf("client for: %v", err)
	}

	t.Run("new triple persisted before use", func(t *testing.T) {
		u, err := models.GetUserByID(db, user.ID)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if u.StravaAccessToken.String != "access-2" || u.StravaRefreshToken.String != "refresh-2" {
			t.Errorf("stored tokens = %q/%q, want refreshed pair",
				u.StravaAccessToken.String, u.StravaRefreshToken.String)
		}
	})
}

func TestClientForTerminalRefreshFailure(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	setTokens(t, db, user.ID, time.Now().Add(-time.Hour))

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	alerts := &recordingAlerter{}
	m := NewTokenManager(db, NewOAuth("id", "secret", srv.URL), "", alerts)

	if _, err := m.ClientFor(context.Background(), user.ID); !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("want ErrReauthRequired, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("token endpoint called %d times, want exactly 1 (no retries on invalid grant)", n)
	}

	t.Run("athlete flagged and alerted", func(t *testing.T) {
		u, err := models.GetUserByID(db, user.ID)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if !u.StravaAuthFailed {
			t.Error("auth-failed flag not set")
		}
		alerts.mu.Lock()
		defer alerts.mu.Unlock()
		if len(alerts.titles) != 1 {
			t.Errorf("alerts sent = %v, want one", alerts.titles)
		}
	})

	t.Run("subsequent calls fail fast", func(t *testing.T) {
		before := calls.Load()
		if _, err := m.ClientFor(context.Background(), user.ID); !errors.Is(err, ErrReauthRequired) {
			t.Fatalf("want ErrReauthRequired, got %v", err)
		}
		if calls.Load() != before {
			t.Error("flagged athlete still hits the token endpoint")
		}
	})
}

func TestClientForSharesRefresh(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)
	setTokens(t, db, user.ID, time.Now().Add(-time.Hour))

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`{"access_token": "access-2", "refresh_token": "refresh-2", "expires_at": 2000000000}`))
	}))
	defer srv.Close()

	m := NewTokenManager(db, NewOAuth("id", "secret", srv.URL), "", nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.ClientFor(context.Background(), user.ID); err != nil {
				t.Errorf("client for: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("refresh performed %d times for concurrent callers, want 1", n)
	}
}

func TestStatus(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db)

	m := NewTokenManager(db, NewOAuth("id", "secret", "http://invalid"), "", nil)

	st, err := m.Status(user.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != TokenMissing || st.ReauthRequired {
		t.Errorf("fresh status = %+v", st)
	}

	expiry := time.Now().Add(6 * time.Hour)
	setTokens(t, db, user.ID, expiry)

	st, err = m.Status(user.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != TokenValid {
		t.Errorf("state = %q, want valid", st.State)
	}
	if st.ExpiresAt.Unix() != expiry.Unix() {
		t.Errorf("expires = %v, want %v", st.ExpiresAt, expiry)
	}
}
