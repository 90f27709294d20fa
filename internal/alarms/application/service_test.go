package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	alarms "alarm-dashboard/internal/alarms/domain"
	"alarm-dashboard/internal/alarms/infrastructure/memory"
	"alarm-dashboard/internal/audit"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type captureNotifier struct {
	mu     sync.Mutex
	events []AlarmEvent
}

func (n *captureNotifier) Notify(_ context.Context, event AlarmEvent) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *captureNotifier) Events() []AlarmEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]AlarmEvent(nil), n.events...)
}

type captureAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (a *captureAudit) Log(_ context.Context, entry audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return a.err
}

var testNow = time.Date(2026, 4, 20, 15, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *memory.AlarmRepository {
	t.Helper()
	store := memory.NewAlarmRepository()
	ctx := context.Background()
	for _, a := range []alarms.Alarm{
		{ID: 1, DetectedAt: testNow.Add(-time.Hour), MeasurementName: "Temperature", AlarmType: "High", Priority: 2},
		{ID: 2, DetectedAt: testNow.Add(-5 * time.Hour), MeasurementName: "Pressure", AlarmType: "Low", Priority: 4},
		{ID: 3, DetectedAt: testNow.Add(-26 * time.Hour), MeasurementName: "Pressure", AlarmType: "Low", Priority: 1},
		{ID: 4, DetectedAt: testNow.Add(-80 * time.Hour), MeasurementName: "Flow", AlarmType: "High", Priority: 1},
	} {
		a := a
		require.NoError(t, store.Create(ctx, &a))
	}
	return store
}

func newTestService(t *testing.T, store AlarmStore, opts ...ServiceOption) *Service {
	t.Helper()
	opts = append([]ServiceOption{WithClock(fixedClock{now: testNow})}, opts...)
	service, err := NewService(store, opts...)
	require.NoError(t, err)
	return service
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}

func TestListOpenPartitionsByWindow(t *testing.T) {
	service := newTestService(t, newTestStore(t))
	recent, err := service.ListOpen(context.Background(), alarms.WindowRecent)
	require.NoError(t, err)
	older, err := service.ListOpen(context.Background(), alarms.WindowOlder)
	require.NoError(t, err)

	require.Equal(t, []int64{2, 1}, alarmIDs(recent))
	require.Equal(t, []int64{3, 4}, alarmIDs(older))
}

func TestTransitionAppliedThenAlreadyResolved(t *testing.T) {
	notifier := &captureNotifier{}
	auditor := &captureAudit{}
	service := newTestService(t, newTestStore(t), WithNotifier(notifier), WithAuditLogger(auditor))
	ctx := audit.WithClient(context.Background(), audit.Client{IP: "10.1.1.1", UserAgent: "test"})

	result, err := service.Transition(ctx, alarms.TransitionRequest{AlarmID: 1, Status: alarms.StatusAccepted, OperatorID: "op1"})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, OutcomeApplied, result.Outcome)
	require.Equal(t, alarms.StatusAccepted, result.Alarm.Status)
	require.Equal(t, "op1", *result.Alarm.ResolvedBy)
	require.True(t, result.Alarm.ResolvedAt.Equal(testNow))

	result, err = service.Transition(ctx, alarms.TransitionRequest{AlarmID: 1, Status: alarms.StatusDismissed, OperatorID: "op2"})
	require.NoError(t, err)
	require.False(t, result.Changed)
	require.Equal(t, OutcomeAlreadyResolved, result.Outcome)
	require.ErrorIs(t, result.Err(), alarms.ErrInvalidTransition)
	require.Equal(t, "op1", *result.Alarm.ResolvedBy)

	events := notifier.Events()
	require.Len(t, events, 1)
	require.Equal(t, EventAccepted, events[0].Type)

	require.Len(t, auditor.entries, 1)
	entry := auditor.entries[0]
	require.Equal(t, "alarm.accept", entry.Action)
	require.Equal(t, "1", entry.ResourceID)
	require.Equal(t, "op1", entry.Actor)
	require.Equal(t, "10.1.1.1", entry.IP)
}

func TestTransitionNotFound(t *testing.T) {
	service := newTestService(t, newTestStore(t))
	result, err := service.Transition(context.Background(), alarms.TransitionRequest{AlarmID: 99, Status: alarms.StatusDismissed, OperatorID: "op1"})
	require.NoError(t, err)
	require.False(t, result.Changed)
	require.Equal(t, OutcomeNotFound, result.Outcome)
	require.ErrorIs(t, result.Err(), alarms.ErrNotFound)
}

func TestTransitionValidationSkipsStore(t *testing.T) {
	store := newTestStore(t)
	store.SetFailure(errors.New("must not be reached"))
	service := newTestService(t, store)

	_, err := service.Transition(context.Background(), alarms.TransitionRequest{AlarmID: 1, Status: alarms.StatusAccepted, OperatorID: ""})
	require.ErrorIs(t, err, alarms.ErrValidation)
	_, err = service.Transition(context.Background(), alarms.TransitionRequest{AlarmID: 1, Status: alarms.StatusAccepted, OperatorID: "12345678901"})
	require.ErrorIs(t, err, alarms.ErrValidation)
}

func TestTransitionStoreUnavailable(t *testing.T) {
	store := newTestStore(t)
	notifier := &captureNotifier{}
	service := newTestService(t, store, WithNotifier(notifier))
	store.SetFailure(errors.New("connection reset"))

	_, err := service.Transition(context.Background(), alarms.TransitionRequest{AlarmID: 1, Status: alarms.StatusAccepted, OperatorID: "op1"})
	require.ErrorIs(t, err, alarms.ErrStoreUnavailable)
	require.Empty(t, notifier.Events())

	store.SetFailure(nil)
	got, err := service.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, alarms.StatusOpen, got.Status)
}

type failingLookupStore struct {
	AlarmStore
	err error
}

func (s failingLookupStore) GetByID(context.Context, int64) (*alarms.Alarm, error) {
	return nil, s.err
}

func TestNoOpTransitionLookupFailureIsReturned(t *testing.T) {
	store := newTestStore(t)
	service := newTestService(t, store)
	_, err := service.Transition(context.Background(), alarms.TransitionRequest{AlarmID: 1, Status: alarms.StatusAccepted, OperatorID: "op1"})
	require.NoError(t, err)

	for _, lookupErr := range []error{
		alarms.Unavailable("get", errors.New("connection reset")),
		errors.New("bad connection"),
	} {
		failing := newTestService(t, failingLookupStore{AlarmStore: store, err: lookupErr})
		result, err := failing.Transition(context.Background(), alarms.TransitionRequest{AlarmID: 1, Status: alarms.StatusDismissed, OperatorID: "op2"})
		require.ErrorIs(t, err, alarms.ErrStoreUnavailable)
		require.False(t, result.Changed)
		require.NotEqual(t, OutcomeNotFound, result.Outcome)
	}

	got, err := service.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, alarms.StatusAccepted, got.Status)
	require.Equal(t, "op1", *got.ResolvedBy)
}

func TestAuditFailureDoesNotChangeResult(t *testing.T) {
	auditor := &captureAudit{err: errors.New("audit table missing")}
	service := newTestService(t, newTestStore(t), WithAuditLogger(auditor))
	result, err := service.Transition(context.Background(), alarms.TransitionRequest{AlarmID: 2, Status: alarms.StatusDismissed, OperatorID: "op1"})
	require.NoError(t, err)
	require.True(t, result.Changed)
}

func TestConcurrentTransitionsExactlyOneApplied(t *testing.T) {
	notifier := &captureNotifier{}
	service := newTestService(t, newTestStore(t), WithNotifier(notifier))

	var wg sync.WaitGroup
	results := make([]TransitionResult, 16)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := alarms.StatusAccepted
			if i%2 == 1 {
				status = alarms.StatusDismissed
			}
			res, err := service.Transition(context.Background(), alarms.TransitionRequest{
				AlarmID: 3, Status: status, OperatorID: fmt.Sprintf("op%d", i),
			})
			results[i], errs[i] = res, err
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	applied := 0
	for _, res := range results {
		if res.Changed {
			applied++
			continue
		}
		require.Equal(t, OutcomeAlreadyResolved, res.Outcome)
	}
	require.Equal(t, 1, applied)
	require.Len(t, notifier.Events(), 1)
}

func TestGet(t *testing.T) {
	service := newTestService(t, newTestStore(t))
	_, err := service.Get(context.Background(), 404)
	require.ErrorIs(t, err, alarms.ErrNotFound)
	_, err = service.Get(context.Background(), 0)
	require.ErrorIs(t, err, alarms.ErrValidation)
}

func TestAnalysis(t *testing.T) {
	service := newTestService(t, newTestStore(t))
	_, err := service.Transition(context.Background(), alarms.TransitionRequest{AlarmID: 4, Status: alarms.StatusDismissed, OperatorID: "op1"})
	require.NoError(t, err)

	analysis, err := service.Analysis(context.Background(), testNow.Add(-30*24*time.Hour), testNow)
	require.NoError(t, err)
	require.EqualValues(t, 4, analysis.Total)
	require.Equal(t, alarms.StatusCount{Status: alarms.StatusOpen, Count: 3}, analysis.StatusDistribution[0])
	require.Equal(t, alarms.StatusCount{Status: alarms.StatusDismissed, Count: 1}, analysis.StatusDistribution[2])
	require.Equal(t, "Pressure - Low", analysis.Pareto[0].Cause)
	require.InDelta(t, 100, analysis.Pareto[len(analysis.Pareto)-1].Cumulative, 1e-9)

	_, err = service.Analysis(context.Background(), testNow, testNow)
	require.ErrorIs(t, err, alarms.ErrValidation)
}

func alarmIDs(list []alarms.Alarm) []int64 {
	out := make([]int64, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}
