package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrNotFound is returned when a query finds no matching row.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when an email is already registered.
var ErrDuplicateEmail = errors.New("duplicate email")

// Risk tolerance categories for recommendation thresholds.
const (
	RiskConservative = "conservative"
	RiskBalanced     = "balanced"
	RiskAdaptive     = "adaptive"
	RiskAggressive   = "aggressive"
)

// User represents one athlete's account and settings row. Every other table
// is scoped to a user id; there are no cross-athlete references.
type User struct {
	ID           int64
	Email        string
	PasswordHash string

	// Heart-rate parameters used by the TRIMP and zone models.
	RestingHR  int
	MaxHR      int
	Gender     string // "male" or "female" — selects the Banister coefficient
	ZoneMethod string

	// Coaching preferences.
	PreferredSports       string
	RecommendationStyle   string // risk tolerance category
	CoachingStyleSpectrum int    // 0–100 tone spectrum
	CoachingTone          string
	Timezone              string

	// Strava credentials. Authoritative in the database; in-memory copies
	// are caches only.
	StravaAccessToken   sql.NullString
	StravaRefreshToken  sql.NullString
	StravaTokenExpires  sql.NullInt64 // unix seconds
	StravaAthleteID     sql.NullInt64
	StravaAuthFailed    bool
	EnhancedTRIMP       bool
	ACWREnhancedEnabled bool
	ACWRChronicDays     int
	ACWRDecayRate       float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

const userColumns = `id, email, password_hash, resting_hr, max_hr, gender, zone_method,
	preferred_sports, recommendation_style, coaching_style_spectrum, coaching_tone, timezone,
	strava_access_token, strava_refresh_token, strava_token_expires_at, strava_athlete_id,
	strava_auth_failed, enhanced_trimp_enabled, acwr_enhanced_enabled, acwr_chronic_days,
	acwr_decay_rate, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	u := &User{}
	var authFailed, enhancedTRIMP, acwrEnhanced int
	var created, updated string
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.RestingHR, &u.MaxHR, &u.Gender, &u.ZoneMethod,
		&u.PreferredSports, &u.RecommendationStyle, &u.CoachingStyleSpectrum, &u.CoachingTone, &u.Timezone,
		&u.StravaAccessToken, &u.StravaRefreshToken, &u.StravaTokenExpires, &u.StravaAthleteID,
		&authFailed, &enhancedTRIMP, &acwrEnhanced, &u.ACWRChronicDays,
		&u.ACWRDecayRate, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	u.StravaAuthFailed = authFailed == 1
	u.EnhancedTRIMP = enhancedTRIMP == 1
	u.ACWREnhancedEnabled = acwrEnhanced == 1
	u.CreatedAt = parseInstant(created)
	u.UpdatedAt = parseInstant(updated)
	return u, nil
}

// CreateUser registers a new athlete with default settings.
func CreateUser(db *sql.DB, email, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("models: hash password: %w", err)
	}

	result, err := db.Exec(
		`INSERT INTO user_settings (email, password_hash) VALUES (?, ?)`,
		email, string(hash),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("models: create user: %w", err)
	}

	id, _ := result.LastInsertId()
	return GetUserByID(db, id)
}

// CountUsers returns the number of registered athletes.
func CountUsers(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM user_settings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("models: count users: %w", err)
	}
	return n, nil
}

// GetUserByID retrieves a user by primary key.
func GetUserByID(db *sql.DB, id int64) (*User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM user_settings WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: get user %d: %w", id, err)
	}
	return u, nil
}

// ListConnectedUsers returns all users with Strava credentials that have not
// entered the terminal auth-failed state. Used by the scheduled fan-out.
func ListConnectedUsers(db *sql.DB) ([]*User, error) {
	rows, err := db.Query(`SELECT ` + userColumns + ` FROM user_settings
		WHERE strava_refresh_token IS NOT NULL AND strava_auth_failed = 0
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("models: list connected users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("models: scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateStravaTokens persists a refreshed token triple atomically and clears
// the auth-failed flag. A refresh result must be stored before any
// downstream provider call uses it.
func UpdateStravaTokens(db *sql.DB, userID int64, accessToken, refreshToken string, expiresAt int64) error {
	_, err := db.Exec(`UPDATE user_settings
		SET strava_access_token = ?, strava_refresh_token = ?, strava_token_expires_at = ?,
		    strava_auth_failed = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		accessToken, refreshToken, expiresAt, userID)
	if err != nil {
		return fmt.Errorf("models: update strava tokens for user %d: %w", userID, err)
	}
	return nil
}

// SetStravaAthleteID stores the provider-side athlete id captured on the
// first successful code exchange.
func SetStravaAthleteID(db *sql.DB, userID, stravaAthleteID int64) error {
	_, err := db.Exec(`UPDATE user_settings SET strava_athlete_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		stravaAthleteID, userID)
	if err != nil {
		return fmt.Errorf("models: set strava athlete id for user %d: %w", userID, err)
	}
	return nil
}

// MarkStravaAuthFailed records the terminal auth state for a user whose
// refresh token was rejected. No automatic retries happen afterwards; the
// athlete must re-authorize.
func MarkStravaAuthFailed(db *sql.DB, userID int64) error {
	_, err := db.Exec(`UPDATE user_settings SET strava_auth_failed = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("models: mark strava auth failed for user %d: %w", userID, err)
	}
	return nil
}

// UpdateHRParams sets the heart-rate model inputs. Max must exceed resting.
func UpdateHRParams(db *sql.DB, userID int64, restingHR, maxHR int, gender string) error {
	if maxHR <= restingHR {
		return fmt.Errorf("models: invalid HR params: max %d <= resting %d", maxHR, restingHR)
	}
	_, err := db.Exec(`UPDATE user_settings
		SET resting_hr = ?, max_hr = ?, gender = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		restingHR, maxHR, gender, userID)
	if err != nil {
		return fmt.Errorf("models: update HR params for user %d: %w", userID, err)
	}
	return nil
}

// UpdateCoachingPrefs sets the recommendation tone and risk tolerance.
func UpdateCoachingPrefs(db *sql.DB, userID int64, style string, spectrum int, timezone string) error {
	_, err := db.Exec(`UPDATE user_settings
		SET recommendation_style = ?, coaching_style_spectrum = ?, timezone = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		style, spectrum, timezone, userID)
	if err != nil {
		return fmt.Errorf("models: update coaching prefs for user %d: %w", userID, err)
	}
	return nil
}

// UpdateACWRConfig sets the enhanced-engine configuration. The chronic
// window is clamped to [28, 90] days and the decay rate to (0, 1].
func UpdateACWRConfig(db *sql.DB, userID int64, enabled bool, chronicDays int, decayRate float64) error {
	if chronicDays < 28 {
		chronicDays = 28
	}
	if chronicDays > 90 {
		chronicDays = 90
	}
	if decayRate <= 0 || decayRate > 1 {
		decayRate = 0.05
	}
	enabledInt := 0
	if enabled {
		enabledInt = 1
	}
	_, err := db.Exec(`UPDATE user_settings
		SET acwr_enhanced_enabled = ?, acwr_chronic_days = ?, acwr_decay_rate = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		enabledInt, chronicDays, decayRate, userID)
	if err != nil {
		return fmt.Errorf("models: update acwr config for user %d: %w", userID, err)
	}
	return nil
}

// Location resolves the user's IANA time zone, falling back to UTC. The
// athlete's local zone is authoritative for rest-day creation and target-date
// selection — "today" is never computed in UTC.
func (u *User) Location() *time.Location {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CheckPassword verifies a candidate password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// HasStravaCredentials reports whether a refresh token is on file.
func (u *User) HasStravaCredentials() bool {
	return u.StravaRefreshToken.Valid && u.StravaRefreshToken.String != ""
}
