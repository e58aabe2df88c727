package models

import (
	"errors"
	"testing"
	"time"
)

func TestCreateUser(t *testing.T) {
	db := testDB(t)

	u := testUser(t, db, "new@example.com")
	if u.RestingHR != 60 || u.MaxHR != 190 {
		t.Errorf("default HR params = %d/%d, want 60/190", u.RestingHR, u.MaxHR)
	}
	if u.RecommendationStyle != RiskBalanced {
		t.Errorf("default style = %q, want balanced", u.RecommendationStyle)
	}
	if u.ACWRChronicDays != 28 || u.ACWRDecayRate != 0.05 {
		t.Errorf("default acwr config = %d/%v", u.ACWRChronicDays, u.ACWRDecayRate)
	}
	if !u.CheckPassword("test-password") {
		t.Error("stored password does not verify")
	}
	if u.CheckPassword("wrong") {
		t.Error("wrong password verified")
	}

	t.Run("duplicate email", func(t *testing.T) {
		if _, err := CreateUser(db, "new@example.com", "pw"); !errors.Is(err, ErrDuplicateEmail) {
			t.Errorf("want ErrDuplicateEmail, got %v", err)
		}
	})
}

func TestStravaTokenLifecycle(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db, "tokens@example.com")

	if user.HasStravaCredentials() {
		t.Fatal("fresh user should have no credentials")
	}

	expires := time.Now().Add(6 * time.Hour).Unix()
	if err := UpdateStravaTokens(db, user.ID, "access-1", "refresh-1", expires); err != nil {
		t.Fatalf("update tokens: %v", err)
	}

	user, err := GetUserByID(db, user.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !user.HasStravaCredentials() {
		t.Fatal("credentials not stored")
	}
	if user.StravaAccessToken.String != "access-1" || user.StravaTokenExpires.Int64 != expires {
		t.Errorf("token round trip mismatch: %+v", user.StravaAccessToken)
	}

	t.Run("connected list includes user", func(t *testing.T) {
		users, err := ListConnectedUsers(db)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(users) != 1 || users[0].ID != user.ID {
			t.Fatalf("connected users = %v", users)
		}
	})

	t.Run("auth failure removes user from fan-out", func(t *testing.T) {
		if err := MarkStravaAuthFailed(db, user.ID); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
		users, err := ListConnectedUsers(db)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(users) != 0 {
			t.Fatalf("auth-failed user still listed: %v", users)
		}
	})

	t.Run("token update clears the failure flag", func(t *testing.T) {
		if err := UpdateStravaTokens(db, user.ID, "access-2", "refresh-2", expires); err != nil {
			t.Fatalf("update: %v", err)
		}
		user, _ := GetUserByID(db, user.ID)
		if user.StravaAuthFailed {
			t.Error("flag not cleared by successful refresh")
		}
	})
}

func TestUpdateACWRConfig(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db, "acwr@example.com")

	t.Run("values clamped", func(t *testing.T) {
		if err := UpdateACWRConfig(db, user.ID, true, 200, 5.0); err != nil {
			t.Fatalf("update: %v", err)
		}
		u, _ := GetUserByID(db, user.ID)
		if !u.ACWREnhancedEnabled || u.ACWRChronicDays != 90 || u.ACWRDecayRate != 0.05 {
			t.Errorf("clamping failed: days=%d rate=%v", u.ACWRChronicDays, u.ACWRDecayRate)
		}
	})

	t.Run("valid values stored", func(t *testing.T) {
		if err := UpdateACWRConfig(db, user.ID, true, 42, 0.1); err != nil {
			t.Fatalf("update: %v", err)
		}
		u, _ := GetUserByID(db, user.ID)
		if u.ACWRChronicDays != 42 || u.ACWRDecayRate != 0.1 {
			t.Errorf("config = %d/%v, want 42/0.1", u.ACWRChronicDays, u.ACWRDecayRate)
		}
	})
}

func TestUpdateHRParams(t *testing.T) {
	db := testDB(t)
	user := testUser(t, db, "hr@example.com")

	if err := UpdateHRParams(db, user.ID, 50, 190, "female"); err != nil {
		t.Fatalf("update: %v", err)
	}
	u, _ := GetUserByID(db, user.ID)
	if u.RestingHR != 50 || u.MaxHR != 190 || u.Gender != "female" {
		t.Errorf("round trip mismatch: %+v", u)
	}

	if err := UpdateHRParams(db, user.ID, 190, 60, "male"); err == nil {
		t.Error("max <= resting should be rejected")
	}
}
