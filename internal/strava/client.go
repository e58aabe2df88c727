// Package strava talks to the Strava API: activity listing, heart-rate
// streams, OAuth code exchange and token refresh, and the per-athlete token
// lifecycle that keeps ingestion authorized.
package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the production Strava API root. Overridable for tests.
const DefaultBaseURL = "https://www.strava.com/api/v3"

// apiTimeout bounds every provider call.
const apiTimeout = 30 * time.Second

// ErrUnauthorized is returned when the API rejects the access token.
var ErrUnauthorized = errors.New("strava: unauthorized")

// ActivitySummary is one entry from the athlete activities listing.
type ActivitySummary struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	StartDate          string   `json:"start_date"`       // UTC
	StartDateLocal     string   `json:"start_date_local"` // athlete-local
	Distance           float64  `json:"distance"`         // meters
	TotalElevationGain float64  `json:"total_elevation_gain"` // meters
	MovingTime         int      `json:"moving_time"` // seconds
	Type               string   `json:"type"`
	SportType          string   `json:"sport_type"`
	Trainer            bool     `json:"trainer"`
	AverageHeartrate   float64  `json:"average_heartrate"`
	MaxHeartrate       float64  `json:"max_heartrate"`
	AverageSpeed       float64  `json:"average_speed"` // meters/second
	SufferScore        *float64 `json:"suffer_score"`
}

// LocalDate returns the activity's calendar date in the athlete's local
// zone. Strava supplies an explicit local timestamp; preferring it over the
// UTC one is what keeps midnight-straddling activities on the right day.
func (s ActivitySummary) LocalDate() string {
	if len(s.StartDateLocal) >= 10 {
		return s.StartDateLocal[:10]
	}
	if len(s.StartDate) >= 10 {
		return s.StartDate[:10]
	}
	return ""
}

// Client is an authorized Strava API client bound to one access token.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewClient builds a client for the given access token. baseURL "" selects
// production.
func NewClient(accessToken, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: apiTimeout},
	}
}

// ListActivities fetches activity summaries between after and before (UTC),
// paging until exhausted.
func (c *Client) ListActivities(ctx context.Context, after, before time.Time) ([]ActivitySummary, error) {
	var all []ActivitySummary

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("after", strconv.FormatInt(after.Unix(), 10))
		q.Set("before", strconv.FormatInt(before.Unix(), 10))
		q.Set("per_page", "200")
		q.Set("page", strconv.Itoa(page))

		var batch []ActivitySummary
		if err := c.getJSON(ctx, "/athlete/activities?"+q.Encode(), &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < 200 {
			break
		}
	}
	return all, nil
}

// streamSet is the key-by-type response shape of the streams endpoint.
type streamSet struct {
	Heartrate *struct {
		Data []int `json:"data"`
	} `json:"heartrate"`
	Time *struct {
		Data []int `json:"data"`
	} `json:"time"`
}

// HeartRateStream fetches the heart-rate stream for an activity. Returns
// (nil, nil) when the activity has no HR data.
func (c *Client) HeartRateStream(ctx context.Context, activityID int64) ([]int, error) {
	path := fmt.Sprintf("/activities/%d/streams?keys=heartrate&key_by_type=true", activityID)

	var set streamSet
	if err := c.getJSON(ctx, path, &set); err != nil {
		return nil, err
	}
	if set.Heartrate == nil || len(set.Heartrate.Data) == 0 {
		return nil, nil
	}
	return set.Heartrate.Data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("strava: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("strava: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("strava: %s returned HTTP %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("strava: decode %s: %w", path, err)
	}
	return nil
}
