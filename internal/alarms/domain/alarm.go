package alarms

import (
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle state of an alarm.
type Status string

const (
	StatusOpen      Status = "Open"
	StatusAccepted  Status = "Accepted"
	StatusDismissed Status = "Dismissed"
)

// MaxOperatorIDLength bounds the operator identifier stored in resolved_by.
const MaxOperatorIDLength = 10

// Statuses lists every known status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusOpen, StatusAccepted, StatusDismissed}
}

// ParseStatus accepts the canonical names case-insensitively.
func ParseStatus(value string) (Status, bool) {
	for _, status := range Statuses() {
		if strings.EqualFold(strings.TrimSpace(value), string(status)) {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no transition leaves the status.
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusDismissed
}

// Alarm is one detected exceedance of an external area measurement.
type Alarm struct {
	ID              int64      `json:"id"`
	DetectedAt      time.Time  `json:"detected_at"`
	MeasurementName string     `json:"measurement_name"`
	Equipment       string     `json:"equipment,omitempty"`
	AlarmType       string     `json:"alarm_type"`
	ObservedValue   float64    `json:"observed_value"`
	ReferenceMin    *float64   `json:"reference_min"`
	ReferenceMax    *float64   `json:"reference_max"`
	Unit            string     `json:"unit"`
	DurationMinutes int        `json:"duration_minutes"`
	Priority        int        `json:"priority"`
	Status          Status     `json:"status"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolvedBy      *string    `json:"resolved_by"`
}

// IsOpen reports whether the alarm is still waiting for an operator.
func (a Alarm) IsOpen() bool {
	return a.Status == StatusOpen
}

// Cause is the label used to group alarms for the Pareto analysis.
func (a Alarm) Cause() string {
	return CauseLabel(a.MeasurementName, a.AlarmType)
}

// CauseLabel joins a measurement name and an alarm type.
func CauseLabel(measurement, alarmType string) string {
	switch {
	case measurement == "":
		return alarmType
	case alarmType == "":
		return measurement
	default:
		return measurement + " - " + alarmType
	}
}

// Resolve applies a transition to an in-memory copy. It mirrors the
// conditional update: nothing changes unless the alarm is open.
func (a *Alarm) Resolve(status Status, operatorID string, at time.Time) bool {
	if a == nil || !a.IsOpen() || !status.IsTerminal() {
		return false
	}
	resolvedAt := at.UTC()
	resolvedBy := operatorID
	a.Status = status
	a.ResolvedAt = &resolvedAt
	a.ResolvedBy = &resolvedBy
	return true
}

// DisplayLess orders alarms by priority descending, then most recent first.
// The id breaks remaining ties so listings are stable between refreshes.
func DisplayLess(a, b Alarm) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.DetectedAt.Equal(b.DetectedAt) {
		return a.DetectedAt.After(b.DetectedAt)
	}
	return a.ID > b.ID
}

// SortForDisplay sorts alarms in place using DisplayLess.
func SortForDisplay(list []Alarm) {
	sort.SliceStable(list, func(i, j int) bool {
		return DisplayLess(list[i], list[j])
	})
}

// TransitionRequest carries an operator decision on one alarm.
type TransitionRequest struct {
	AlarmID    int64  `json:"alarm_id"`
	Status     Status `json:"status"`
	OperatorID string `json:"operator_id"`
}

// Validate checks the request before any store access.
func (r TransitionRequest) Validate() error {
	if r.AlarmID <= 0 {
		return &ValidationError{Field: "alarm_id", Reason: "must be positive"}
	}
	if !r.Status.IsTerminal() {
		return &ValidationError{Field: "status", Reason: "must be Accepted or Dismissed"}
	}
	operator := strings.TrimSpace(r.OperatorID)
	if operator == "" {
		return &ValidationError{Field: "operator_id", Reason: "required"}
	}
	if len([]rune(operator)) > MaxOperatorIDLength {
		return &ValidationError{Field: "operator_id", Reason: "at most 10 characters"}
	}
	return nil
}

// Normalized returns the request with a trimmed operator id.
func (r TransitionRequest) Normalized() TransitionRequest {
	r.OperatorID = strings.TrimSpace(r.OperatorID)
	return r
}
