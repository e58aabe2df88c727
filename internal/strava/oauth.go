package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTokenURL is the production Strava token endpoint.
const DefaultTokenURL = "https://www.strava.com/oauth/token"

// ErrInvalidGrant is returned when the token endpoint rejects the refresh
// token or authorization code. Terminal for that athlete: the only recovery
// is re-authorization.
var ErrInvalidGrant = errors.New("strava: invalid grant")

// TokenResponse is the triple returned by both the code exchange and the
// refresh grant, plus the athlete identity present on first exchange.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds
	Athlete      *struct {
		ID int64 `json:"id"`
	} `json:"athlete"`
}

// OAuth performs token grants with the global client credentials.
type OAuth struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
}

// NewOAuth builds the OAuth helper. tokenURL "" selects production.
func NewOAuth(clientID, clientSecret, tokenURL string) *OAuth {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &OAuth{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		httpClient:   &http.Client{Timeout: apiTimeout},
	}
}

// ExchangeCode swaps an authorization code for the token triple. The
// response carries the provider athlete id, stored on first success.
func (o *OAuth) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	return o.grant(ctx, url.Values{
		"grant_type": {"authorization_code"},
		"code":       {code},
	})
}

// Refresh exchanges a refresh token for a new triple.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return o.grant(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
}

func (o *OAuth) grant(ctx context.Context, form url.Values) (*TokenResponse, error) {
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)

	req, err := http.NewRequestWithContext(ctx, "POST", o.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("strava: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("strava: token request: %w", err)
	}
	defer resp.Body.Close()

	// Strava signals a rejected code or refresh token with 400/401. Those
	// are terminal; everything else 4xx/5xx is surfaced for retry policy.
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrInvalidGrant, resp.StatusCode, body)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("strava: token endpoint HTTP %d: %s", resp.StatusCode, body)
	}

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("strava: decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("strava: token response missing access_token")
	}
	if tok.ExpiresAt == 0 {
		tok.ExpiresAt = time.Now().Add(6 * time.Hour).Unix()
	}
	return &tok, nil
}
