package sqlstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	alarms "alarm-dashboard/internal/alarms/domain"
	"alarm-dashboard/internal/database"
)

const integrationTable = "external_alarms_it"

func openIntegrationRepo(t *testing.T, driver, envKey string) *AlarmRepository {
	t.Helper()
	dsn := os.Getenv(envKey)
	if dsn == "" {
		t.Skip(envKey + " not set")
	}
	ctx := context.Background()
	db, dialect, err := database.Open(ctx, database.Config{Driver: driver, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, _ = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+integrationTable)
	require.NoError(t, Migrate(ctx, db, dialect, integrationTable))
	t.Cleanup(func() { _, _ = db.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+integrationTable) })

	repo, err := NewAlarmRepository(db, dialect, WithTable(integrationTable))
	require.NoError(t, err)
	return repo
}

func TestAlarmRepository_Postgres(t *testing.T) {
	runRepositoryContract(t, openIntegrationRepo(t, database.DriverPostgres, "PG_DSN"))
}

func TestAlarmRepository_MySQL(t *testing.T) {
	runRepositoryContract(t, openIntegrationRepo(t, database.DriverMySQL, "MYSQL_DSN"))
}

func runRepositoryContract(t *testing.T, repo *AlarmRepository) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cutoff := alarms.Cutoff(now)
	ref := 10.0

	seed := []alarms.Alarm{
		{DetectedAt: now.Add(-1 * time.Hour), MeasurementName: "Temperature", AlarmType: "High", ObservedValue: 41, ReferenceMax: &ref, Priority: 1},
		{DetectedAt: now.Add(-2 * time.Hour), MeasurementName: "Pressure", AlarmType: "Low", ObservedValue: 2, ReferenceMin: &ref, Priority: 3},
		{DetectedAt: now.Add(-30 * time.Minute), MeasurementName: "Pressure", AlarmType: "Low", ObservedValue: 1, ReferenceMin: &ref, Priority: 3},
		{DetectedAt: cutoff, MeasurementName: "Flow", AlarmType: "High", ObservedValue: 9, Priority: 2},
		{DetectedAt: now.Add(-48 * time.Hour), MeasurementName: "Flow", AlarmType: "High", ObservedValue: 9, Priority: 2},
		{DetectedAt: now.Add(-72 * time.Hour), MeasurementName: "Level", AlarmType: "Low", ObservedValue: 0.1, Priority: 5},
	}
	for i := range seed {
		require.NoError(t, repo.Create(ctx, &seed[i]))
		require.NotZero(t, seed[i].ID)
	}

	recent, err := repo.ListOpen(ctx, alarms.WindowRecent, cutoff)
	require.NoError(t, err)
	older, err := repo.ListOpen(ctx, alarms.WindowOlder, cutoff)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	require.Len(t, older, 2)
	require.Equal(t, seed[2].ID, recent[0].ID)
	require.Equal(t, seed[1].ID, recent[1].ID)
	require.Equal(t, seed[3].ID, recent[2].ID, "boundary alarm belongs to recent")
	require.Equal(t, seed[5].ID, older[0].ID)
	require.NotNil(t, recent[0].ReferenceMin)
	require.Nil(t, recent[0].ResolvedAt)

	req := alarms.TransitionRequest{AlarmID: seed[0].ID, Status: alarms.StatusAccepted, OperatorID: "op1"}
	affected, err := repo.Transition(ctx, req, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	req.Status = alarms.StatusDismissed
	req.OperatorID = "op2"
	affected, err = repo.Transition(ctx, req, now.Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 0, affected)

	got, err := repo.GetByID(ctx, seed[0].ID)
	require.NoError(t, err)
	require.Equal(t, alarms.StatusAccepted, got.Status)
	require.Equal(t, "op1", *got.ResolvedBy)
	require.True(t, got.ResolvedAt.Equal(now))

	missing, err := repo.GetByID(ctx, 999999)
	require.NoError(t, err)
	require.Nil(t, missing)

	var wg sync.WaitGroup
	results := make(chan int64, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := repo.Transition(ctx, alarms.TransitionRequest{
				AlarmID: seed[4].ID, Status: alarms.StatusDismissed, OperatorID: fmt.Sprintf("op%d", i),
			}, now)
			if err == nil {
				results <- n
			}
		}(i)
	}
	wg.Wait()
	close(results)
	var total int64
	for n := range results {
		total += n
	}
	require.EqualValues(t, 1, total)

	open, err := repo.CountOpen(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, open)

	byStatus, err := repo.CountByStatus(ctx, now.Add(-96*time.Hour), now)
	require.NoError(t, err)
	counts := map[alarms.Status]int64{}
	for _, c := range byStatus {
		counts[c.Status] = c.Count
	}
	require.EqualValues(t, 4, counts[alarms.StatusOpen])
	require.EqualValues(t, 1, counts[alarms.StatusAccepted])
	require.EqualValues(t, 1, counts[alarms.StatusDismissed])

	byCause, err := repo.CountByCause(ctx, now.Add(-96*time.Hour), now)
	require.NoError(t, err)
	pareto := alarms.BuildPareto(byCause)
	require.Equal(t, "Flow - High", pareto[0].Cause)
	require.InDelta(t, 100, pareto[len(pareto)-1].Cumulative, 1e-9)
}
