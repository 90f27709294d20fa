package notify

import (
	"context"

	alarmapp "alarm-dashboard/internal/alarms/application"
)

// MultiNotifier dispatches alarm events to multiple notifiers.
type MultiNotifier struct {
	notifiers []alarmapp.AlarmNotifier
}

// NewMultiNotifier constructs a MultiNotifier. Nil entries are skipped.
func NewMultiNotifier(notifiers ...alarmapp.AlarmNotifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Add appends a notifier.
func (m *MultiNotifier) Add(notifier alarmapp.AlarmNotifier) {
	if m == nil || notifier == nil {
		return
	}
	m.notifiers = append(m.notifiers, notifier)
}

// Len returns the number of registered notifiers.
func (m *MultiNotifier) Len() int {
	if m == nil {
		return 0
	}
	return len(m.notifiers)
}

// Notify forwards events to all notifiers.
func (m *MultiNotifier) Notify(ctx context.Context, event alarmapp.AlarmEvent) {
	if m == nil {
		return
	}
	for _, notifier := range m.notifiers {
		if notifier != nil {
			notifier.Notify(ctx, event)
		}
	}
}
