// Package scheduler drives the periodic background work: the activity sync
// fan-out and the daily recommendation pass.
package scheduler

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/mkendall/stride/internal/coach"
	"github.com/mkendall/stride/internal/models"
	"github.com/mkendall/stride/internal/syncer"
)

// Status holds the result of the last scheduled pass.
type Status struct {
	LastRun            time.Time
	NextRun            time.Time
	UsersSynced        int
	ActivitiesImported int
	Recommendations    int
	IntervalHours      int
}

// Scheduler runs periodic sync and recommendation passes in the background.
type Scheduler struct {
	db     *sql.DB
	syncer *syncer.Syncer
	coach  *coach.Coach

	stop chan struct{}
	done chan struct{}

	mu     sync.RWMutex
	status Status
}

// New creates a Scheduler. The coach may be nil when no LLM provider is
// configured; recommendation passes are skipped in that case.
func New(db *sql.DB, s *syncer.Syncer, c *coach.Coach) *Scheduler {
	return &Scheduler{
		db:     db,
		syncer: s,
		coach:  c,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start begins running scheduled passes. It runs an initial pass
// immediately, then repeats at the configured interval. Call Stop to shut
// down gracefully.
func (s *Scheduler) Start() {
	go s.run()
	log.Println("Background scheduler started")
}

// Stop signals the scheduler to shut down and waits for it to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// Status returns the result of the last scheduled pass.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Scheduler) run() {
	defer close(s.done)

	s.runPass()

	for {
		interval := s.getInterval()
		ticker := time.NewTicker(interval)

		select {
		case <-ticker.C:
			ticker.Stop()
			s.runPass()
		case <-s.stop:
			ticker.Stop()
			return
		}
	}
}

// getInterval reads the configured pass interval from app settings.
func (s *Scheduler) getInterval() time.Duration {
	hours := models.GetSettingInt(s.db, "scheduler.interval_hours", 6)
	if hours < 1 {
		hours = 1
	}
	return time.Duration(hours) * time.Hour
}

// runPass syncs every connected athlete, then generates recommendations for
// any athlete without fresh guidance. Scheduled work has no external
// cancellation; it completes or times out naturally.
func (s *Scheduler) runPass() {
	log.Println("Running scheduled pass...")
	ctx := context.Background()

	st := Status{LastRun: time.Now(), IntervalHours: models.GetSettingInt(s.db, "scheduler.interval_hours", 6)}

	summary, err := s.syncer.SyncAll(ctx, syncer.DefaultWindowDays)
	if err != nil {
		log.Printf("Scheduled pass: sync fan-out: %v", err)
	} else {
		st.UsersSynced = summary.UsersProcessed
		st.ActivitiesImported = summary.TotalActivities
	}

	st.Recommendations = s.generateRecommendations(ctx)

	st.NextRun = st.LastRun.Add(s.getInterval())

	s.mu.Lock()
	s.status = st
	s.mu.Unlock()

	log.Println("Scheduled pass complete")
}

// generateRecommendations runs the recommendation pipeline for every
// connected athlete. The pipeline itself no-ops when existing guidance is
// still fresh, so the daily cadence emerges from repeated passes.
func (s *Scheduler) generateRecommendations(ctx context.Context) int {
	if s.coach == nil {
		return 0
	}

	users, err := models.ListConnectedUsers(s.db)
	if err != nil {
		log.Printf("Scheduled pass: list athletes for recommendations: %v", err)
		return 0
	}

	generated := 0
	for _, user := range users {
		if _, err := s.coach.GenerateRecommendation(ctx, user, false); err != nil {
			log.Printf("Scheduled pass: recommendation for athlete %d: %v", user.ID, err)
			continue
		}
		generated++
	}
	return generated
}
