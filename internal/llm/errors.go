package llm

import (
	"fmt"
	"strings"
)

// APIError is a structured error from a provider's HTTP API.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("llm/%s: HTTP %d (%s): %s", strings.ToLower(e.Provider), e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("llm/%s: HTTP %d: %s", strings.ToLower(e.Provider), e.StatusCode, e.Message)
}

// UserMessage maps an API failure to text safe to surface to the athlete.
func (e *APIError) UserMessage() string {
	msg := strings.ToLower(e.Message)
	switch {
	case e.StatusCode == 401 || e.StatusCode == 403:
		return fmt.Sprintf("Invalid API key for %s. Check the configured credentials.", e.Provider)
	case e.StatusCode == 429:
		return fmt.Sprintf("Rate limit exceeded on %s. Try again in a few minutes.", e.Provider)
	case e.StatusCode == 400 && strings.Contains(msg, "credit"):
		return fmt.Sprintf("Insufficient credits on %s.", e.Provider)
	case e.StatusCode == 400 && strings.Contains(msg, "model"):
		return fmt.Sprintf("Model not found on %s. Check the configured model name.", e.Provider)
	case e.StatusCode >= 500:
		return fmt.Sprintf("%s is temporarily unavailable. Try again later.", e.Provider)
	default:
		return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
	}
}
