package sqlstore

import (
	"errors"
	"strings"

	alarms "alarm-dashboard/internal/alarms/domain"
)

// StatusLabels are the values written to the status column.
type StatusLabels struct {
	Open      string `yaml:"open"`
	Accepted  string `yaml:"accepted"`
	Dismissed string `yaml:"dismissed"`
}

// DefaultStatusLabels stores the canonical status names.
func DefaultStatusLabels() StatusLabels {
	return StatusLabels{
		Open:      string(alarms.StatusOpen),
		Accepted:  string(alarms.StatusAccepted),
		Dismissed: string(alarms.StatusDismissed),
	}
}

// LegacyStatusLabels are the status values written by the first dashboard
// release. Only the values carry over; column names stay those of alarmColumns.
func LegacyStatusLabels() StatusLabels {
	return StatusLabels{Open: "Aberta", Accepted: "Aceito", Dismissed: "Ignorado"}
}

// Validate requires three distinct non-empty labels.
func (l StatusLabels) Validate() error {
	open := strings.TrimSpace(l.Open)
	accepted := strings.TrimSpace(l.Accepted)
	dismissed := strings.TrimSpace(l.Dismissed)
	if open == "" || accepted == "" || dismissed == "" {
		return errors.New("alarm store: empty status label")
	}
	if open == accepted || open == dismissed || accepted == dismissed {
		return errors.New("alarm store: duplicate status label")
	}
	return nil
}

// Label returns the stored value for status.
func (l StatusLabels) Label(status alarms.Status) string {
	switch status {
	case alarms.StatusOpen:
		return l.Open
	case alarms.StatusAccepted:
		return l.Accepted
	case alarms.StatusDismissed:
		return l.Dismissed
	default:
		return string(status)
	}
}

// Status maps a stored value back. Unknown labels pass through unchanged.
func (l StatusLabels) Status(label string) alarms.Status {
	switch label {
	case l.Open:
		return alarms.StatusOpen
	case l.Accepted:
		return alarms.StatusAccepted
	case l.Dismissed:
		return alarms.StatusDismissed
	default:
		return alarms.Status(label)
	}
}
