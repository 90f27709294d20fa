package app

import (
	"context"
	"fmt"
	"time"

	alarms "alarm-dashboard/internal/alarms/domain"
)

type seedAlarm struct {
	age         time.Duration
	measurement string
	equipment   string
	alarmType   string
	value       float64
	min, max    *float64
	unit        string
	duration    int
	priority    int
}

func ref(v float64) *float64 { return &v }

var demoAlarms = []seedAlarm{
	{30 * time.Minute, "Ambient temperature", "WS-01", "High", 41.2, nil, ref(38), "C", 25, 3},
	{2 * time.Hour, "Wind speed", "WS-01", "High", 22.5, nil, ref(18), "m/s", 12, 4},
	{5 * time.Hour, "Rain gauge", "RG-02", "Stuck", 0, ref(0.1), nil, "mm", 300, 1},
	{9 * time.Hour, "Relative humidity", "WS-02", "Low", 8, ref(15), ref(100), "%", 45, 2},
	{20 * time.Hour, "Irradiance", "PYR-01", "Low", 35, ref(50), ref(1400), "W/m2", 90, 2},
	{30 * time.Hour, "Ambient temperature", "WS-02", "High", 39.8, nil, ref(38), "C", 60, 3},
	{52 * time.Hour, "Wind speed", "WS-02", "Flatline", 0, ref(0.2), nil, "m/s", 720, 1},
	{75 * time.Hour, "Barometric pressure", "BP-01", "Low", 890, ref(950), ref(1050), "hPa", 30, 2},
}

// Seed inserts demo open alarms relative to now. It returns the number of
// alarms created.
func (a *App) Seed(ctx context.Context, now time.Time) (int, error) {
	for i, s := range demoAlarms {
		alarm := alarms.Alarm{
			DetectedAt:      now.Add(-s.age).UTC(),
			MeasurementName: s.measurement,
			Equipment:       s.equipment,
			AlarmType:       s.alarmType,
			ObservedValue:   s.value,
			ReferenceMin:    s.min,
			ReferenceMax:    s.max,
			Unit:            s.unit,
			DurationMinutes: s.duration,
			Priority:        s.priority,
			Status:          alarms.StatusOpen,
		}
		if err := a.Store.Create(ctx, &alarm); err != nil {
			return i, fmt.Errorf("seed alarm %d: %w", i+1, err)
		}
	}
	return len(demoAlarms), nil
}
