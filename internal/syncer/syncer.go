// Package syncer bridges external triggers to the per-athlete pipeline:
// token resolution, activity ingestion, then aggregate recomputation over
// the window in ascending date order.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkendall/stride/internal/ingest"
	"github.com/mkendall/stride/internal/metrics"
	"github.com/mkendall/stride/internal/models"
	"github.com/mkendall/stride/internal/strava"
)

// DefaultWindowDays is the sync window used when the caller does not
// specify one.
const DefaultWindowDays = 7

// fanoutWorkers bounds concurrent athletes in a scheduled fan-out. Work
// within one athlete stays sequential.
const fanoutWorkers = 4

// Syncer runs the per-athlete sync pipeline.
type Syncer struct {
	db     *sql.DB
	tokens *strava.TokenManager
}

// New creates a Syncer.
func New(db *sql.DB, tokens *strava.TokenManager) *Syncer {
	return &Syncer{db: db, tokens: tokens}
}

// UserResult is the per-athlete outcome of one sync.
type UserResult struct {
	AthleteID int64         `json:"athlete_id"`
	Ingest    ingest.Result `json:"ingest"`
	Error     string        `json:"error,omitempty"`
}

// FanoutResult summarizes a scheduled fan-out run.
type FanoutResult struct {
	UsersProcessed  int          `json:"users_processed"`
	TotalActivities int          `json:"total_activities"`
	Results         []UserResult `json:"per_user_results"`
}

// SyncUser runs the full pipeline for one athlete over a trailing window of
// windowDays ending today in the athlete's local zone.
func (s *Syncer) SyncUser(ctx context.Context, user *models.User, windowDays int) (ingest.Result, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	now := time.Now().In(user.Location())
	endDate := now.Format("2006-01-02")
	startDate := now.AddDate(0, 0, -(windowDays - 1)).Format("2006-01-02")

	return s.syncWindow(ctx, user, startDate, endDate)
}

// syncWindow runs ingestion then aggregate recomputation over the window.
// Aggregates are updated day by day in ascending order so each date's write
// sees the rest-day backfill of the dates before it.
func (s *Syncer) syncWindow(ctx context.Context, user *models.User, startDate, endDate string) (ingest.Result, error) {
	client, err := s.tokens.ClientFor(ctx, user.ID)
	if err != nil {
		return ingest.Result{}, err
	}

	res, err := ingest.Run(ctx, s.db, user, client, startDate, endDate)
	if err != nil {
		return res, err
	}

	if err := metrics.UpdateWindow(s.db, user, startDate, endDate); err != nil {
		return res, fmt.Errorf("syncer: aggregate update for athlete %d: %w", user.ID, err)
	}
	return res, nil
}

// SyncAll fans out over every athlete with live Strava credentials. Each
// athlete runs independently; per-athlete failures are recorded in the
// summary, never propagated. The returned error covers only enumeration
// failures.
func (s *Syncer) SyncAll(ctx context.Context, windowDays int) (*FanoutResult, error) {
	users, err := models.ListConnectedUsers(s.db)
	if err != nil {
		return nil, err
	}

	results := make([]UserResult, len(users))
	var mu sync.Mutex
	summary := &FanoutResult{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanoutWorkers)

	for i, user := range users {
		i, user := i, user
		g.Go(func() error {
			ur := UserResult{AthleteID: user.ID}
			res, err := s.SyncUser(gctx, user, windowDays)
			ur.Ingest = res
			if err != nil {
				ur.Error = err.Error()
				if errors.Is(err, strava.ErrReauthRequired) {
					log.Printf("syncer: athlete %d needs re-authorization, skipping", user.ID)
				} else {
					log.Printf("syncer: athlete %d sync failed: %v", user.ID, err)
				}
			}
			results[i] = ur

			mu.Lock()
			summary.UsersProcessed++
			summary.TotalActivities += res.Processed
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	summary.Results = results
	return summary, nil
}
