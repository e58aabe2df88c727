package strava

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/mkendall/stride/internal/models"
)

// ErrReauthRequired is returned when an athlete has no usable credentials:
// either no refresh token is on file or the provider rejected it. No
// automatic retries happen; the athlete must re-authorize.
var ErrReauthRequired = errors.New("strava: re-authorization required")

// refreshMargin is how close to expiry a token counts as expiring_soon.
const refreshMargin = 30 * time.Minute

// TokenState classifies an athlete's stored credentials.
type TokenState string

const (
	TokenValid        TokenState = "valid"
	TokenExpiringSoon TokenState = "expiring_soon"
	TokenExpired      TokenState = "expired"
	TokenMissing      TokenState = "missing"
)

// Status is the structured token condition surfaced to callers.
type Status struct {
	State          TokenState `json:"state"`
	ExpiresAt      time.Time  `json:"expires_at,omitempty"`
	ReauthRequired bool       `json:"reauth_required"`
}

// Alerter receives alert-level notifications, e.g. when an athlete's
// refresh token goes terminal.
type Alerter interface {
	Alert(title, message string)
}

// TokenManager hands out API clients bound to currently-valid access
// tokens, refreshing stale ones. Tokens are authoritative in the database;
// anything held in memory is a cache. Concurrent requests for the same
// athlete share a single refresh attempt via singleflight.
type TokenManager struct {
	db         *sql.DB
	oauth      *OAuth
	apiBaseURL string
	alerts     Alerter

	group singleflight.Group
}

// NewTokenManager builds a token manager. apiBaseURL "" selects the
// production API; alerts may be nil.
func NewTokenManager(db *sql.DB, oauth *OAuth, apiBaseURL string, alerts Alerter) *TokenManager {
	return &TokenManager{db: db, oauth: oauth, apiBaseURL: apiBaseURL, alerts: alerts}
}

// stateOf classifies a user's stored credentials at the given instant.
func stateOf(u *models.User, now time.Time) TokenState {
	if !u.HasStravaCredentials() {
		return TokenMissing
	}
	if !u.StravaTokenExpires.Valid {
		return TokenExpired
	}
	expiry := time.Unix(u.StravaTokenExpires.Int64, 0)
	switch {
	case expiry.After(now.Add(refreshMargin)):
		return TokenValid
	case expiry.After(now):
		return TokenExpiringSoon
	default:
		return TokenExpired
	}
}

// Status reports the current token condition for an athlete.
func (m *TokenManager) Status(athleteID int64) (Status, error) {
	u, err := models.GetUserByID(m.db, athleteID)
	if err != nil {
		return Status{}, err
	}

	st := Status{State: stateOf(u, time.Now()), ReauthRequired: u.StravaAuthFailed}
	if u.StravaTokenExpires.Valid {
		st.ExpiresAt = time.Unix(u.StravaTokenExpires.Int64, 0)
	}
	return st, nil
}

// ClientFor returns an API client bound to a live access token for the
// athlete, refreshing first when the stored token is near expiry or past
// it. Returns ErrReauthRequired when no usable credentials exist.
func (m *TokenManager) ClientFor(ctx context.Context, athleteID int64) (*Client, error) {
	u, err := models.GetUserByID(m.db, athleteID)
	if err != nil {
		return nil, err
	}
	if u.StravaAuthFailed {
		return nil, ErrReauthRequired
	}

	switch stateOf(u, time.Now()) {
	case TokenValid:
		return NewClient(u.StravaAccessToken.String, m.apiBaseURL), nil
	case TokenMissing:
		return nil, ErrReauthRequired
	}

	// expiring_soon or expired: refresh, sharing one in-flight attempt per
	// athlete. Other callers await the outcome.
	v, err, _ := m.group.Do(strconv.FormatInt(athleteID, 10), func() (any, error) {
		return m.refresh(ctx, athleteID, u.StravaRefreshToken.String)
	})
	if err != nil {
		return nil, err
	}
	return NewClient(v.(string), m.apiBaseURL), nil
}

// refresh performs the token refresh with bounded exponential backoff on
// transient failures and persists the new triple before returning. An
// invalid refresh token is terminal: the athlete is flagged and alerted.
func (m *TokenManager) refresh(ctx context.Context, athleteID int64, refreshToken string) (string, error) {
	var tok *TokenResponse

	backoff := retry.WithMaxRetries(3, retry.NewExponential(2*time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		t, err := m.oauth.Refresh(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, ErrInvalidGrant) {
				return err // terminal, do not retry
			}
			return retry.RetryableError(err)
		}
		tok = t
		return nil
	})

	if errors.Is(err, ErrInvalidGrant) {
		log.Printf("strava: refresh token rejected for athlete %d, flagging for re-auth", athleteID)
		if dbErr := models.MarkStravaAuthFailed(m.db, athleteID); dbErr != nil {
			log.Printf("strava: mark auth failed: %v", dbErr)
		}
		if m.alerts != nil {
			m.alerts.Alert("Strava re-authorization required",
				fmt.Sprintf("Athlete %d has an invalid refresh token and needs to reconnect Strava.", athleteID))
		}
		return "", fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}
	if err != nil {
		return "", fmt.Errorf("strava: refresh for athlete %d: %w", athleteID, err)
	}

	// Persist before use — downstream provider calls must see the stored
	// refresh result.
	if err := models.UpdateStravaTokens(m.db, athleteID, tok.AccessToken, tok.RefreshToken, tok.ExpiresAt); err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
