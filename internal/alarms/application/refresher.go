package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultRefreshInterval matches the operator page auto-refresh.
const DefaultRefreshInterval = 2 * time.Minute

// Refresher periodically refreshes a dashboard.
type Refresher struct {
	dashboard *Dashboard
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.SugaredLogger
	cron      *cron.Cron
}

// NewRefresher constructs a refresher. Interval defaults to two minutes.
func NewRefresher(dashboard *Dashboard, interval time.Duration, logger *zap.SugaredLogger) (*Refresher, error) {
	if dashboard == nil {
		return nil, errors.New("refresher: nil dashboard")
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	timeout := interval / 2
	if timeout > 30*time.Second {
		timeout = 30 * time.Second
	}
	return &Refresher{
		dashboard: dashboard,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// Spec returns the cron schedule used by the refresher.
func (r *Refresher) Spec() string {
	return fmt.Sprintf("@every %s", r.interval)
}

// Start refreshes once and schedules the periodic refresh. The schedule
// stops when ctx is done or Stop is called.
func (r *Refresher) Start(ctx context.Context) error {
	if r == nil {
		return errors.New("refresher: nil")
	}
	if r.cron != nil {
		return errors.New("refresher: already started")
	}
	r.runOnce(ctx)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.Spec(), func() { r.runOnce(ctx) }); err != nil {
		return fmt.Errorf("refresher: schedule: %w", err)
	}
	r.cron = c
	c.Start()
	r.logger.Infow("dashboard refresher started", "interval", r.interval.String())

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running refresh.
func (r *Refresher) Stop() {
	if r == nil || r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

func (r *Refresher) runOnce(parent context.Context) {
	if parent.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()
	if _, err := r.dashboard.RefreshBy(ctx, TriggerSchedule); err != nil {
		r.logger.Warnw("scheduled dashboard refresh failed", "error", err)
	}
}
