package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mkendall/stride/internal/coach"
	"github.com/mkendall/stride/internal/database"
	"github.com/mkendall/stride/internal/handlers"
	"github.com/mkendall/stride/internal/llm"
	"github.com/mkendall/stride/internal/middleware"
	"github.com/mkendall/stride/internal/models"
	"github.com/mkendall/stride/internal/notify"
	"github.com/mkendall/stride/internal/scheduler"
	"github.com/mkendall/stride/internal/strava"
	"github.com/mkendall/stride/internal/syncer"
)

func main() {
	// Database path — default to ./stride.db, override with STRIDE_DB_PATH.
	dbPath := os.Getenv("STRIDE_DB_PATH")
	if dbPath == "" {
		dbPath = "stride.db"
	}

	// Listen address — default to :8080, override with STRIDE_ADDR.
	addr := os.Getenv("STRIDE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Printf("Database ready: %s", filepath.Clean(dbPath))

	if err := bootstrapAthlete(db); err != nil {
		log.Fatalf("Failed to bootstrap athlete: %v", err)
	}

	// Strava stack: OAuth client, token manager, alerting.
	clientID := os.Getenv("STRIDE_STRAVA_CLIENT_ID")
	clientSecret := os.Getenv("STRIDE_STRAVA_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		log.Println("Warning: STRIDE_STRAVA_CLIENT_ID / STRIDE_STRAVA_CLIENT_SECRET not set; sync will fail until configured")
	}
	redirectURI := os.Getenv("STRIDE_STRAVA_REDIRECT_URI")
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/strava/callback"
	}

	notifier := notify.New(db)
	oauth := strava.NewOAuth(clientID, clientSecret, "")
	tokens := strava.NewTokenManager(db, oauth, "", notifier)
	sync := syncer.New(db, tokens)

	// LLM coach — optional; the service runs without it.
	var trainer *coach.Coach
	provider, err := llm.NewProviderFromSettings(db)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		log.Println("No LLM provider configured; recommendations disabled")
	case err != nil:
		log.Fatalf("Failed to configure LLM provider: %v", err)
	default:
		trainer = coach.New(db, provider)
		log.Printf("Coaching provider: %s", provider.Name())
	}

	sched := scheduler.New(db, sync, trainer)
	sched.Start()
	defer sched.Stop()

	// Handlers.
	syncHandler := &handlers.Sync{DB: db, Syncer: sync}
	stravaHandler := &handlers.StravaAuth{
		DB: db, OAuth: oauth, Tokens: tokens,
		ClientID: clientID, RedirectURI: redirectURI,
	}
	settings := &handlers.Settings{DB: db}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth(db))

	mux.HandleFunc("GET /strava/connect", stravaHandler.Connect)
	mux.HandleFunc("GET /strava/callback", stravaHandler.Callback)
	mux.HandleFunc("GET /api/strava/status", stravaHandler.Status)

	mux.HandleFunc("POST /api/sync", syncHandler.UserSync)
	mux.HandleFunc("POST /tasks/sync", syncHandler.ScheduledSync)

	mux.HandleFunc("POST /api/settings/hr", settings.UpdateHR)
	mux.HandleFunc("POST /api/settings/coaching", settings.UpdateCoaching)
	mux.HandleFunc("POST /api/settings/acwr", settings.UpdateACWR)

	if trainer != nil {
		obs := &handlers.Observations{DB: db, Coach: trainer}
		recs := &handlers.Recommendations{DB: db, Coach: trainer}
		mux.HandleFunc("POST /api/observations", obs.Save)
		mux.HandleFunc("GET /api/recommendations", recs.Get)
		mux.HandleFunc("POST /api/recommendations", recs.Generate)
	}

	server := &http.Server{Addr: addr, Handler: middleware.RequestLogger(mux)}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Println("Shutting down...")
		server.Close()
	}()

	log.Printf("Stride listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

// bootstrapAthlete creates the initial athlete from environment variables
// if none exist in the database.
func bootstrapAthlete(db *sql.DB) error {
	count, err := models.CountUsers(db)
	if err != nil {
		return fmt.Errorf("check user count: %w", err)
	}
	if count > 0 {
		return nil
	}

	email := os.Getenv("STRIDE_ADMIN_EMAIL")
	password := os.Getenv("STRIDE_ADMIN_PASS")
	if email == "" || password == "" {
		return fmt.Errorf("no athletes exist and STRIDE_ADMIN_EMAIL / STRIDE_ADMIN_PASS env vars are not set")
	}

	user, err := models.CreateUser(db, email, password)
	if err != nil {
		return fmt.Errorf("create athlete: %w", err)
	}

	log.Printf("Bootstrapped athlete: %s (id=%d)", user.Email, user.ID)
	return nil
}

func handleHealth(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintln(w, "ok")
	}
}
