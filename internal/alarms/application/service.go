package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	alarms "alarm-dashboard/internal/alarms/domain"
	"alarm-dashboard/internal/audit"
	"alarm-dashboard/internal/auth"
	"alarm-dashboard/internal/observability/metrics"
)

// AlarmStore is the persistence contract of the alarm lifecycle.
type AlarmStore interface {
	ListOpen(ctx context.Context, window alarms.Window, cutoff time.Time) ([]alarms.Alarm, error)
	Transition(ctx context.Context, req alarms.TransitionRequest, resolvedAt time.Time) (int64, error)
	GetByID(ctx context.Context, id int64) (*alarms.Alarm, error)
	CountByStatus(ctx context.Context, from, to time.Time) ([]alarms.StatusCount, error)
	CountByCause(ctx context.Context, from, to time.Time) ([]alarms.CauseCount, error)
}

// AlarmNotifier publishes alarm lifecycle events.
type AlarmNotifier interface {
	Notify(ctx context.Context, event AlarmEvent)
}

const (
	EventAccepted  = "accepted"
	EventDismissed = "dismissed"
)

// AlarmEvent represents a lifecycle update.
type AlarmEvent struct {
	Type  string       `json:"type"`
	Alarm alarms.Alarm `json:"alarm"`
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Outcome classifies a transition attempt that reached the store.
type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomeAlreadyResolved Outcome = "already_resolved"
	OutcomeNotFound        Outcome = "not_found"
)

// TransitionResult reports what a transition did. Changed is false for
// both "no changes made" outcomes.
type TransitionResult struct {
	Outcome Outcome       `json:"outcome"`
	Changed bool          `json:"changed"`
	Alarm   *alarms.Alarm `json:"alarm,omitempty"`
}

// Err maps a no-op outcome to its sentinel error.
func (r TransitionResult) Err() error {
	switch r.Outcome {
	case OutcomeAlreadyResolved:
		return alarms.ErrInvalidTransition
	case OutcomeNotFound:
		return alarms.ErrNotFound
	default:
		return nil
	}
}

// Analysis aggregates alarms detected in a period.
type Analysis struct {
	From               time.Time            `json:"from"`
	To                 time.Time            `json:"to"`
	Total              int64                `json:"total"`
	StatusDistribution []alarms.StatusCount `json:"status_distribution"`
	Pareto             []alarms.ParetoEntry `json:"pareto"`
}

// Service handles alarm listing, transitions and analysis.
type Service struct {
	store    AlarmStore
	notifier AlarmNotifier
	auditor  audit.Logger
	clock    Clock
	logger   *zap.SugaredLogger
}

// ServiceOption customizes the alarm service.
type ServiceOption func(*Service)

// WithNotifier assigns a notifier.
func WithNotifier(notifier AlarmNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithAuditLogger records applied transitions.
func WithAuditLogger(auditor audit.Logger) ServiceOption {
	return func(s *Service) {
		s.auditor = auditor
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.SugaredLogger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs an alarm service.
func NewService(store AlarmStore, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("alarms: nil store")
	}
	service := &Service{
		store:  store,
		clock:  systemClock{},
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Now returns the service clock time in UTC.
func (s *Service) Now() time.Time {
	return s.clock.Now().UTC()
}

// ListOpen returns open alarms of a window relative to the current time.
func (s *Service) ListOpen(ctx context.Context, window alarms.Window) ([]alarms.Alarm, error) {
	if s == nil {
		return nil, errors.New("alarms: nil service")
	}
	return s.ListOpenAt(ctx, window, s.Now())
}

// ListOpenAt returns open alarms of a window relative to now.
func (s *Service) ListOpenAt(ctx context.Context, window alarms.Window, now time.Time) ([]alarms.Alarm, error) {
	if s == nil {
		return nil, errors.New("alarms: nil service")
	}
	start := time.Now()
	list, err := s.store.ListOpen(ctx, window, alarms.Cutoff(now))
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveAlarmList(string(window), result, time.Since(start))
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Get fetches one alarm.
func (s *Service) Get(ctx context.Context, id int64) (*alarms.Alarm, error) {
	if s == nil {
		return nil, errors.New("alarms: nil service")
	}
	if id <= 0 {
		return nil, &alarms.ValidationError{Field: "alarm_id", Reason: "must be positive"}
	}
	alarm, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alarm == nil {
		return nil, alarms.ErrNotFound
	}
	return alarm, nil
}

// Transition applies an operator decision. Validation and store errors are
// returned as errors; a request that reached the store but changed nothing
// returns a result with Changed false.
func (s *Service) Transition(ctx context.Context, req alarms.TransitionRequest) (TransitionResult, error) {
	if s == nil {
		return TransitionResult{}, errors.New("alarms: nil service")
	}
	if err := req.Validate(); err != nil {
		metrics.ObserveTransition(string(req.Status), "invalid", 0)
		return TransitionResult{}, err
	}
	req = req.Normalized()

	start := time.Now()
	resolvedAt := s.Now()
	affected, err := s.store.Transition(ctx, req, resolvedAt)
	if err != nil {
		metrics.ObserveTransition(string(req.Status), "error", time.Since(start))
		return TransitionResult{}, err
	}

	if affected == 0 {
		// Classification read happens after the atomic update and may see
		// a later state; it never changes the "no changes made" outcome.
		// A failed read leaves the outcome unknown and is returned.
		current, err := s.store.GetByID(ctx, req.AlarmID)
		if err != nil {
			metrics.ObserveTransition(string(req.Status), "error", time.Since(start))
			if !errors.Is(err, alarms.ErrStoreUnavailable) {
				err = alarms.Unavailable("transition lookup", err)
			}
			return TransitionResult{}, err
		}
		result := TransitionResult{Outcome: OutcomeNotFound}
		if current != nil {
			result = TransitionResult{Outcome: OutcomeAlreadyResolved, Alarm: current}
		}
		metrics.ObserveTransition(string(req.Status), string(result.Outcome), time.Since(start))
		s.logger.Infow("alarm transition made no changes",
			"alarm_id", req.AlarmID, "status", req.Status, "operator_id", req.OperatorID, "outcome", result.Outcome)
		return result, nil
	}

	metrics.ObserveTransition(string(req.Status), string(OutcomeApplied), time.Since(start))
	alarm, err := s.store.GetByID(ctx, req.AlarmID)
	if err != nil || alarm == nil {
		s.logger.Warnw("alarm reload after transition failed", "alarm_id", req.AlarmID, "error", err)
		alarm = nil
	}
	s.logger.Infow("alarm transitioned",
		"alarm_id", req.AlarmID, "status", req.Status, "operator_id", req.OperatorID)

	s.recordAudit(ctx, req, resolvedAt)
	if alarm != nil {
		s.notify(ctx, eventType(req.Status), *alarm)
	}
	return TransitionResult{Outcome: OutcomeApplied, Changed: true, Alarm: alarm}, nil
}

// Analysis computes the status distribution and Pareto chart for [from, to).
func (s *Service) Analysis(ctx context.Context, from, to time.Time) (Analysis, error) {
	if s == nil {
		return Analysis{}, errors.New("alarms: nil service")
	}
	if !to.After(from) {
		return Analysis{}, &alarms.ValidationError{Field: "to", Reason: "must be after from"}
	}
	byStatus, err := s.store.CountByStatus(ctx, from.UTC(), to.UTC())
	if err != nil {
		return Analysis{}, err
	}
	byCause, err := s.store.CountByCause(ctx, from.UTC(), to.UTC())
	if err != nil {
		return Analysis{}, err
	}
	distribution := alarms.CompleteDistribution(byStatus)
	var total int64
	for _, c := range distribution {
		total += c.Count
	}
	return Analysis{
		From:               from.UTC(),
		To:                 to.UTC(),
		Total:              total,
		StatusDistribution: distribution,
		Pareto:             alarms.BuildPareto(byCause),
	}, nil
}

func (s *Service) recordAudit(ctx context.Context, req alarms.TransitionRequest, at time.Time) {
	if s.auditor == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"alarm_id":    req.AlarmID,
		"status":      req.Status,
		"operator_id": req.OperatorID,
		"resolved_at": at.Format(time.RFC3339Nano),
	})
	client := audit.ClientFromContext(ctx)
	err := s.auditor.Log(ctx, audit.Entry{
		Actor:        req.OperatorID,
		Subject:      auth.SubjectFromContext(ctx),
		Role:         string(auth.RoleFromContext(ctx)),
		Action:       "alarm." + actionName(req.Status),
		ResourceType: "alarm",
		ResourceID:   strconv.FormatInt(req.AlarmID, 10),
		Metadata:     payload,
		IP:           client.IP,
		UserAgent:    client.UserAgent,
		CreatedAt:    at,
	})
	if err != nil {
		metrics.IncAuditFailure()
		s.logger.Errorw("audit log write failed", "alarm_id", req.AlarmID, "error", err)
	}
}

func (s *Service) notify(ctx context.Context, eventType string, alarm alarms.Alarm) {
	metrics.IncAlarmEvent(eventType)
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, AlarmEvent{Type: eventType, Alarm: alarm})
}

func eventType(status alarms.Status) string {
	if status == alarms.StatusDismissed {
		return EventDismissed
	}
	return EventAccepted
}

func actionName(status alarms.Status) string {
	switch status {
	case alarms.StatusAccepted:
		return "accept"
	case alarms.StatusDismissed:
		return "dismiss"
	default:
		return fmt.Sprintf("set_%s", status)
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
