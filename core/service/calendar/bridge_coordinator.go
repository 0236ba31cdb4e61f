// Package calendar holds the polling coordinator and the calendar
// service built on its snapshot.
package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"exchange_bridge/core/domain"
	"exchange_bridge/core/port/out"
	"exchange_bridge/pkg/logger"
)

// retainedRuns bounds the refresh history kept in Postgres.
const retainedRuns = 100

// CoordinatorConfig wires the coordinator's collaborators. Repo and
// Cache are optional; nil disables them.
type CoordinatorConfig struct {
	Provider    out.CalendarProviderPort
	Repo        out.RefreshStateRepository
	Cache       out.SnapshotCachePort
	Logger      *logger.Logger
	Interval    time.Duration
	DaysToFetch int
	MaxEvents   int
}

// Coordinator owns the latest successful snapshot and refreshes it on a
// fixed interval. Failures keep the previous snapshot and record the
// error; there is no retry or backoff beyond the next tick.
type Coordinator struct {
	provider out.CalendarProviderPort
	repo     out.RefreshStateRepository
	cache    out.SnapshotCachePort
	log      *logger.Logger

	interval  time.Duration
	days      int
	maxEvents int

	refreshCh chan struct{}

	mu          sync.RWMutex
	events      []domain.Event
	lastSuccess time.Time
	lastAttempt time.Time
	lastErr     error
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		provider:  cfg.Provider,
		repo:      cfg.Repo,
		cache:     cfg.Cache,
		log:       cfg.Logger.WithField("component", "coordinator"),
		interval:  cfg.Interval,
		days:      cfg.DaysToFetch,
		maxEvents: cfg.MaxEvents,
		refreshCh: make(chan struct{}, 1),
	}
}

// Run drives the poll loop until ctx is cancelled. The first refresh
// happens immediately; a cached snapshot (when available) serves reads
// until it completes.
func (c *Coordinator) Run(ctx context.Context) {
	c.loadCachedSnapshot(ctx)
	c.loadLastRun(ctx)
	c.refresh(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("coordinator stopped")
			return
		case <-ticker.C:
			c.refresh(ctx)
		case <-c.refreshCh:
			c.refresh(ctx)
		}
	}
}

// RequestRefresh nudges the loop to refresh outside the fixed interval.
// Non-blocking; a refresh already pending absorbs the request.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// Snapshot returns the latest successful fetch and its time.
func (c *Coordinator) Snapshot() ([]domain.Event, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	events := make([]domain.Event, len(c.events))
	copy(events, c.events)
	return events, c.lastSuccess
}

// LastError returns the error of the most recent attempt, nil after a
// successful one, plus the attempt time.
func (c *Coordinator) LastError() (error, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr, c.lastAttempt
}

// Healthy reports whether the coordinator holds a snapshot and the last
// attempt succeeded.
func (c *Coordinator) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr == nil && !c.lastSuccess.IsZero()
}

func (c *Coordinator) loadCachedSnapshot(ctx context.Context) {
	if c.cache == nil {
		return
	}
	events, fetchedAt, err := c.cache.Load(ctx)
	if err != nil {
		c.log.WithError(err).Warn("failed to load cached snapshot")
		return
	}
	if len(events) == 0 {
		return
	}

	c.mu.Lock()
	c.events = events
	c.lastSuccess = fetchedAt
	c.mu.Unlock()
	c.log.Info("restored %d events from cached snapshot (fetched %s)", len(events), fetchedAt.Format(time.RFC3339))
}

// loadLastRun seeds attempt state from the newest persisted run so a
// restarted bridge reports its last known outcome until the first
// refresh completes.
func (c *Coordinator) loadLastRun(ctx context.Context) {
	if c.repo == nil {
		return
	}
	rec, err := c.repo.Latest(ctx)
	if err != nil {
		c.log.WithError(err).Warn("failed to load last refresh run")
		return
	}
	if rec == nil {
		return
	}

	c.mu.Lock()
	if c.lastAttempt.IsZero() {
		c.lastAttempt = rec.FinishedAt
		if !rec.Success {
			c.lastErr = fmt.Errorf("last recorded refresh failed (%s): %s", rec.ErrorKind, rec.ErrorMsg)
		}
	}
	c.mu.Unlock()
	c.log.Info("last recorded refresh: success=%t at %s", rec.Success, rec.FinishedAt.Format(time.RFC3339))
}

func (c *Coordinator) refresh(ctx context.Context) {
	started := time.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, c.interval)
	defer cancel()

	events, err := c.provider.FetchEvents(fetchCtx, c.days, c.maxEvents)
	finished := time.Now()

	c.mu.Lock()
	c.lastAttempt = finished
	c.lastErr = err
	if err == nil {
		c.events = events
		c.lastSuccess = finished
	}
	c.mu.Unlock()

	if err != nil {
		c.log.WithError(err).Error("calendar refresh failed (%s)", ErrorKind(err))
	} else {
		c.log.WithDuration(finished.Sub(started)).Debug("calendar refresh completed with %d events", len(events))
		c.storeSnapshot(ctx, events, finished)
	}
	c.recordRun(ctx, started, finished, err, len(events))
}

func (c *Coordinator) storeSnapshot(ctx context.Context, events []domain.Event, fetchedAt time.Time) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Store(ctx, events, fetchedAt); err != nil {
		c.log.WithError(err).Warn("failed to store snapshot")
	}
}

func (c *Coordinator) recordRun(ctx context.Context, started, finished time.Time, runErr error, count int) {
	if c.repo == nil {
		return
	}

	rec := &out.RefreshRecord{
		StartedAt:  started,
		FinishedAt: finished,
		Success:    runErr == nil,
		EventCount: count,
	}
	if runErr != nil {
		rec.ErrorKind = ErrorKind(runErr)
		rec.ErrorMsg = runErr.Error()
		rec.EventCount = 0
	}

	if err := c.repo.Record(ctx, rec); err != nil {
		c.log.WithError(err).Warn("failed to record refresh run")
		return
	}
	if err := c.repo.Prune(ctx, retainedRuns); err != nil {
		c.log.WithError(err).Warn("failed to prune refresh runs")
	}
}

// ErrorKind names the coarse category of a provider error.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case domain.IsAuthError(err):
		return "auth"
	case domain.IsConnectionError(err):
		return "connection"
	case domain.IsNotFound(err):
		return "not_found"
	default:
		return "unknown"
	}
}
