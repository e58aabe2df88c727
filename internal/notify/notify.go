// Package notify broadcasts alert-level events to globally configured
// Shoutrrr URLs (ntfy, Discord, etc.). Used for conditions that need a
// human, like an athlete whose Strava refresh token was rejected.
package notify

import (
	"database/sql"
	"log"
	"strings"

	"github.com/containrrr/shoutrrr"

	"github.com/mkendall/stride/internal/models"
)

// Notifier sends broadcast alerts. Errors are logged but never propagate —
// alerting must not block the triggering action.
type Notifier struct {
	db *sql.DB
}

// New creates a Notifier backed by the app settings table.
func New(db *sql.DB) *Notifier {
	return &Notifier{db: db}
}

// Alert broadcasts a message to every configured Shoutrrr URL. A no-op when
// none are configured.
func (n *Notifier) Alert(title, message string) {
	urls := n.broadcastURLs()
	if len(urls) == 0 {
		return
	}

	body := title
	if message != "" {
		body = title + "\n\n" + message
	}

	for _, u := range urls {
		if err := shoutrrr.Send(u, body); err != nil {
			log.Printf("notify: broadcast failed for %s: %v", redact(u), err)
		}
	}
}

// broadcastURLs reads the newline-separated Shoutrrr URL list from settings.
func (n *Notifier) broadcastURLs() []string {
	raw := models.GetSetting(n.db, "notify.shoutrrr_urls")
	if raw == "" {
		return nil
	}

	var urls []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			urls = append(urls, line)
		}
	}
	return urls
}

// redact trims a Shoutrrr URL to its scheme for logging, since the rest
// usually embeds a credential.
func redact(u string) string {
	if i := strings.Index(u, "://"); i > 0 {
		return u[:i] + "://…"
	}
	return "…"
}
