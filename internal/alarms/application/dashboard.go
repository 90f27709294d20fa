package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	alarms "alarm-dashboard/internal/alarms/domain"
	"alarm-dashboard/internal/observability/metrics"
)

// Trigger names what caused a refresh.
type Trigger string

const (
	TriggerManual     Trigger = "manual"
	TriggerSchedule   Trigger = "schedule"
	TriggerTransition Trigger = "transition"
)

// Snapshot is one consistent read of both windows, taken with a single now.
type Snapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Cutoff      time.Time      `json:"cutoff"`
	Recent      []alarms.Alarm `json:"recent"`
	Older       []alarms.Alarm `json:"older"`
	Stale       bool           `json:"stale"`
	Error       string         `json:"error,omitempty"`
}

// Ready reports whether at least one refresh succeeded.
func (s Snapshot) Ready() bool {
	return !s.GeneratedAt.IsZero()
}

// Open returns the number of open alarms in the snapshot.
func (s Snapshot) Open() int {
	return len(s.Recent) + len(s.Older)
}

// SnapshotPublisher receives every successful refresh.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snapshot Snapshot)
}

// Dashboard keeps the latest snapshot of open alarms.
type Dashboard struct {
	service   *Service
	publisher SnapshotPublisher
	logger    *zap.SugaredLogger

	refreshMu sync.Mutex
	mu        sync.RWMutex
	current   Snapshot
}

// DashboardOption customizes the dashboard.
type DashboardOption func(*Dashboard)

// WithPublisher assigns the snapshot publisher.
func WithPublisher(publisher SnapshotPublisher) DashboardOption {
	return func(d *Dashboard) {
		d.publisher = publisher
	}
}

// WithDashboardLogger assigns a logger.
func WithDashboardLogger(logger *zap.SugaredLogger) DashboardOption {
	return func(d *Dashboard) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDashboard constructs a dashboard over service.
func NewDashboard(service *Service, opts ...DashboardOption) (*Dashboard, error) {
	if service == nil {
		return nil, errors.New("dashboard: nil service")
	}
	d := &Dashboard{service: service, logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Snapshot returns the latest snapshot.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// Refresh re-reads both windows.
func (d *Dashboard) Refresh(ctx context.Context) (Snapshot, error) {
	return d.RefreshBy(ctx, TriggerManual)
}

// RefreshBy re-reads both windows and records the trigger. On failure the
// previous lists are kept, marked stale, and the error is returned.
func (d *Dashboard) RefreshBy(ctx context.Context, trigger Trigger) (Snapshot, error) {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	start := time.Now()
	now := d.service.Now()
	recent, err := d.service.ListOpenAt(ctx, alarms.WindowRecent, now)
	var older []alarms.Alarm
	if err == nil {
		older, err = d.service.ListOpenAt(ctx, alarms.WindowOlder, now)
	}
	if err != nil {
		metrics.ObserveDashboardRefresh(string(trigger), metrics.ResultError, time.Since(start))
		d.mu.Lock()
		d.current.Stale = true
		d.current.Error = err.Error()
		stale := d.current
		d.mu.Unlock()
		d.logger.Warnw("dashboard refresh failed", "trigger", trigger, "error", err)
		return stale, err
	}

	snapshot := Snapshot{
		GeneratedAt: now,
		Cutoff:      alarms.Cutoff(now),
		Recent:      recent,
		Older:       older,
	}
	d.mu.Lock()
	d.current = snapshot
	d.mu.Unlock()
	metrics.ObserveDashboardRefresh(string(trigger), metrics.ResultSuccess, time.Since(start))
	d.logger.Debugw("dashboard refreshed", "trigger", trigger, "recent", len(recent), "older", len(older))

	if d.publisher != nil {
		d.publisher.PublishSnapshot(ctx, snapshot)
	}
	return snapshot, nil
}

// Transition applies an operator decision and refreshes the dashboard when
// a row changed, so the next read reflects the write.
func (d *Dashboard) Transition(ctx context.Context, req alarms.TransitionRequest) (TransitionResult, error) {
	result, err := d.service.Transition(ctx, req)
	if err != nil || !result.Changed {
		return result, err
	}
	if _, err := d.RefreshBy(ctx, TriggerTransition); err != nil {
		d.logger.Warnw("refresh after transition failed", "alarm_id", req.AlarmID, "error", err)
	}
	return result, nil
}
