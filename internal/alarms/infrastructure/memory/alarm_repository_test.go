package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	alarms "alarm-dashboard/internal/alarms/domain"
)

func seedRepo(t *testing.T, now time.Time) *AlarmRepository {
	t.Helper()
	repo := NewAlarmRepository()
	ctx := context.Background()
	for _, a := range []alarms.Alarm{
		{ID: 1, DetectedAt: now.Add(-time.Hour), MeasurementName: "Temperature", AlarmType: "High", Priority: 1},
		{ID: 2, DetectedAt: now.Add(-3 * time.Hour), MeasurementName: "Pressure", AlarmType: "Low", Priority: 3},
		{ID: 3, DetectedAt: now.Add(-25 * time.Hour), MeasurementName: "Flow", AlarmType: "High", Priority: 2},
		{ID: 4, DetectedAt: now.Add(-30 * time.Hour), MeasurementName: "Flow", AlarmType: "High", Priority: 2},
		{ID: 5, DetectedAt: now.Add(-2 * time.Hour), MeasurementName: "Level", AlarmType: "Low", Priority: 9, Status: alarms.StatusAccepted},
	} {
		a := a
		require.NoError(t, repo.Create(ctx, &a))
	}
	return repo
}

func TestListOpenPartitionsAndOrders(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := seedRepo(t, now)
	cutoff := alarms.Cutoff(now)

	recent, err := repo.ListOpen(context.Background(), alarms.WindowRecent, cutoff)
	require.NoError(t, err)
	older, err := repo.ListOpen(context.Background(), alarms.WindowOlder, cutoff)
	require.NoError(t, err)

	require.Equal(t, []int64{2, 1}, ids(recent))
	require.Equal(t, []int64{3, 4}, ids(older))
}

func TestTransitionIsCompareAndSet(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := seedRepo(t, now)
	ctx := context.Background()

	n, err := repo.Transition(ctx, alarms.TransitionRequest{AlarmID: 1, Status: alarms.StatusDismissed, OperatorID: " op7 "}, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = repo.Transition(ctx, alarms.TransitionRequest{AlarmID: 1, Status: alarms.StatusAccepted, OperatorID: "op8"}, now)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)

	got, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, alarms.StatusDismissed, got.Status)
	require.Equal(t, "op7", *got.ResolvedBy)

	n, err = repo.Transition(ctx, alarms.TransitionRequest{AlarmID: 404, Status: alarms.StatusAccepted, OperatorID: "op8"}, now)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestConcurrentTransitionsExactlyOneWins(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := seedRepo(t, now)

	var applied int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := alarms.StatusAccepted
			if i%2 == 0 {
				status = alarms.StatusDismissed
			}
			n, err := repo.Transition(context.Background(), alarms.TransitionRequest{
				AlarmID: 2, Status: status, OperatorID: fmt.Sprintf("op%d", i),
			}, now)
			if err == nil {
				atomic.AddInt64(&applied, n)
			}
		}(i)
	}
	wg.Wait()
	require.EqualValues(t, 1, applied)
}

func TestFailureSurfacesAsStoreUnavailable(t *testing.T) {
	repo := NewAlarmRepository()
	repo.SetFailure(errors.New("connection refused"))

	_, err := repo.ListOpen(context.Background(), alarms.WindowRecent, time.Now())
	require.ErrorIs(t, err, alarms.ErrStoreUnavailable)

	_, err = repo.Transition(context.Background(), alarms.TransitionRequest{AlarmID: 1, Status: alarms.StatusAccepted, OperatorID: "op"}, time.Now())
	require.ErrorIs(t, err, alarms.ErrStoreUnavailable)

	_, err = repo.Transition(context.Background(), alarms.TransitionRequest{AlarmID: 1, Status: alarms.StatusAccepted}, time.Now())
	require.ErrorIs(t, err, alarms.ErrValidation)
}

func TestReturnedAlarmsAreCopies(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := seedRepo(t, now)
	got, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	got.Status = alarms.StatusAccepted

	again, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, alarms.StatusOpen, again.Status)
}

func TestCounts(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := seedRepo(t, now)
	ctx := context.Background()

	open, err := repo.CountOpen(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, open)

	byCause, err := repo.CountByCause(ctx, now.Add(-48*time.Hour), now)
	require.NoError(t, err)
	pareto := alarms.BuildPareto(byCause)
	require.Equal(t, "Flow - High", pareto[0].Cause)
	require.EqualValues(t, 2, pareto[0].Count)

	byStatus, err := repo.CountByStatus(ctx, now.Add(-4*time.Hour), now)
	require.NoError(t, err)
	dist := alarms.CompleteDistribution(byStatus)
	require.Equal(t, alarms.StatusCount{Status: alarms.StatusOpen, Count: 2}, dist[0])
	require.Equal(t, alarms.StatusCount{Status: alarms.StatusAccepted, Count: 1}, dist[1])
	require.Equal(t, alarms.StatusCount{Status: alarms.StatusDismissed, Count: 0}, dist[2])
}

func ids(list []alarms.Alarm) []int64 {
	out := make([]int64, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}
