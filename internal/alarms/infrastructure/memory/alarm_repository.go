package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	alarms "alarm-dashboard/internal/alarms/domain"
)

// AlarmRepository keeps alarms in process memory.
type AlarmRepository struct {
	mu     sync.RWMutex
	alarms map[int64]alarms.Alarm
	nextID int64
	err    error
}

// NewAlarmRepository constructs an empty repository.
func NewAlarmRepository() *AlarmRepository {
	return &AlarmRepository{alarms: make(map[int64]alarms.Alarm), nextID: 1}
}

// SetFailure makes every call fail with a store error until cleared with nil.
func (r *AlarmRepository) SetFailure(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *AlarmRepository) failure(op string) error {
	if r.err == nil {
		return nil
	}
	return alarms.Unavailable(op, r.err)
}

// Create stores a copy of alarm and assigns its id when zero.
func (r *AlarmRepository) Create(_ context.Context, alarm *alarms.Alarm) error {
	if alarm == nil {
		return errors.New("alarm repo: nil alarm")
	}
	if alarm.MeasurementName == "" || alarm.AlarmType == "" || alarm.DetectedAt.IsZero() {
		return errors.New("alarm repo: missing fields")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("create"); err != nil {
		return err
	}
	if alarm.ID == 0 {
		alarm.ID = r.nextID
	}
	if _, exists := r.alarms[alarm.ID]; exists {
		return errors.New("alarm repo: duplicate id")
	}
	if alarm.ID >= r.nextID {
		r.nextID = alarm.ID + 1
	}
	if alarm.Status == "" {
		alarm.Status = alarms.StatusOpen
	}
	alarm.DetectedAt = alarm.DetectedAt.UTC()
	r.alarms[alarm.ID] = cloneAlarm(*alarm)
	return nil
}

// ListOpen returns open alarms on one side of cutoff in display order.
func (r *AlarmRepository) ListOpen(_ context.Context, window alarms.Window, cutoff time.Time) ([]alarms.Alarm, error) {
	if window != alarms.WindowRecent && window != alarms.WindowOlder {
		return nil, &alarms.ValidationError{Field: "window", Reason: "unknown window"}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.failure("list open"); err != nil {
		return nil, err
	}
	result := make([]alarms.Alarm, 0)
	for _, alarm := range r.alarms {
		if alarm.IsOpen() && window.Contains(alarm.DetectedAt, cutoff) {
			result = append(result, cloneAlarm(alarm))
		}
	}
	alarms.SortForDisplay(result)
	return result, nil
}

// Transition applies the compare-and-set under the write lock.
func (r *AlarmRepository) Transition(_ context.Context, req alarms.TransitionRequest, resolvedAt time.Time) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	req = req.Normalized()
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("transition"); err != nil {
		return 0, err
	}
	alarm, ok := r.alarms[req.AlarmID]
	if !ok || !alarm.Resolve(req.Status, req.OperatorID, resolvedAt) {
		return 0, nil
	}
	r.alarms[req.AlarmID] = alarm
	return 1, nil
}

// GetByID fetches an alarm by id. A missing row yields nil, nil.
func (r *AlarmRepository) GetByID(_ context.Context, id int64) (*alarms.Alarm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.failure("get"); err != nil {
		return nil, err
	}
	alarm, ok := r.alarms[id]
	if !ok {
		return nil, nil
	}
	copied := cloneAlarm(alarm)
	return &copied, nil
}

// CountByStatus groups alarms detected in [from, to) by status.
func (r *AlarmRepository) CountByStatus(_ context.Context, from, to time.Time) ([]alarms.StatusCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.failure("count by status"); err != nil {
		return nil, err
	}
	counts := make(map[alarms.Status]int64)
	for _, alarm := range r.alarms {
		if inRange(alarm.DetectedAt, from, to) {
			counts[alarm.Status]++
		}
	}
	result := make([]alarms.StatusCount, 0, len(counts))
	for status, count := range counts {
		result = append(result, alarms.StatusCount{Status: status, Count: count})
	}
	return result, nil
}

// CountByCause groups alarms detected in [from, to) by measurement and type.
func (r *AlarmRepository) CountByCause(_ context.Context, from, to time.Time) ([]alarms.CauseCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.failure("count by cause"); err != nil {
		return nil, err
	}
	type key struct{ measurement, alarmType string }
	counts := make(map[key]int64)
	for _, alarm := range r.alarms {
		if inRange(alarm.DetectedAt, from, to) {
			counts[key{alarm.MeasurementName, alarm.AlarmType}]++
		}
	}
	result := make([]alarms.CauseCount, 0, len(counts))
	for k, count := range counts {
		result = append(result, alarms.CauseCount{MeasurementName: k.measurement, AlarmType: k.alarmType, Count: count})
	}
	return result, nil
}

// CountOpen returns the number of open alarms.
func (r *AlarmRepository) CountOpen(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.failure("count open"); err != nil {
		return 0, err
	}
	var count int64
	for _, alarm := range r.alarms {
		if alarm.IsOpen() {
			count++
		}
	}
	return count, nil
}

func inRange(at, from, to time.Time) bool {
	return !at.Before(from) && at.Before(to)
}

func cloneAlarm(a alarms.Alarm) alarms.Alarm {
	if a.ReferenceMin != nil {
		v := *a.ReferenceMin
		a.ReferenceMin = &v
	}
	if a.ReferenceMax != nil {
		v := *a.ReferenceMax
		a.ReferenceMax = &v
	}
	if a.ResolvedAt != nil {
		v := *a.ResolvedAt
		a.ResolvedAt = &v
	}
	if a.ResolvedBy != nil {
		v := *a.ResolvedBy
		a.ResolvedBy = &v
	}
	return a
}
