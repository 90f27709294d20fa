package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	alarmapp "alarm-dashboard/internal/alarms/application"
	"alarm-dashboard/internal/observability/metrics"
)

// Clock provides time for dedupe bookkeeping.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders alarm events and sends them through a channel.
type Notifier struct {
	channel        Channel
	template       *Template
	location       *time.Location
	clock          Clock
	logger         *zap.SugaredLogger
	mu             sync.Mutex
	sent           map[string]sendRecord
	cooldown       time.Duration
	dedupeWindow   time.Duration
	requestTimeout time.Duration
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithLocation renders times in loc instead of UTC.
func WithLocation(loc *time.Location) Option {
	return func(n *Notifier) {
		if loc != nil {
			n.location = loc
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithRequestTimeout bounds each channel send.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same alarm and event.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs an alarm notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("alarm notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:        channel,
		template:       template,
		location:       time.UTC,
		clock:          systemClock{},
		logger:         zap.NewNop().Sugar(),
		sent:           make(map[string]sendRecord),
		requestTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements AlarmNotifier. Delivery failures are logged, never returned.
func (n *Notifier) Notify(ctx context.Context, event alarmapp.AlarmEvent) {
	if n == nil || n.channel == nil {
		return
	}
	data := buildTemplateData(event, n.location)
	content, err := n.template.Render(data)
	if err != nil {
		n.logger.Warnw("notification render failed", "alarm_id", event.Alarm.ID, "error", err)
		return
	}
	key := notificationKey(event.Alarm.ID, event.Type)
	if !n.shouldSend(key, content) {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.requestTimeout)
	defer cancel()
	if err := n.channel.Send(sendCtx, content); err != nil {
		metrics.IncNotification(n.channel.Name(), metrics.ResultError)
		n.logger.Warnw("notification send failed", "channel", n.channel.Name(), "alarm_id", event.Alarm.ID, "error", err)
		return
	}
	metrics.IncNotification(n.channel.Name(), metrics.ResultSuccess)
	n.markSent(key, content)
}

func buildTemplateData(event alarmapp.AlarmEvent, loc *time.Location) TemplateData {
	alarm := event.Alarm
	data := TemplateData{
		AlarmID:     alarm.ID,
		Measurement: alarm.MeasurementName,
		Equipment:   alarm.Equipment,
		AlarmType:   alarm.AlarmType,
		Value:       formatFloat(alarm.ObservedValue),
		Unit:        alarm.Unit,
		Reference:   FormatReference(alarm.ReferenceMin, alarm.ReferenceMax),
		Priority:    alarm.Priority,
		Duration:    alarm.DurationMinutes,
		DetectedAt:  alarm.DetectedAt.In(loc).Format(displayLayout),
		Status:      string(alarm.Status),
		Event:       event.Type,
		EventLabel:  eventLabel(event.Type),
	}
	if alarm.ResolvedBy != nil {
		data.Operator = *alarm.ResolvedBy
	}
	if alarm.ResolvedAt != nil {
		data.ResolvedAt = alarm.ResolvedAt.In(loc).Format(displayLayout)
	}
	return data
}

const displayLayout = "2006-01-02 15:04:05"

// FormatReference renders the reference band of an alarm.
func FormatReference(lower, upper *float64) string {
	switch {
	case lower != nil && upper != nil:
		return fmt.Sprintf("%s .. %s", formatFloat(*lower), formatFloat(*upper))
	case lower != nil:
		return ">= " + formatFloat(*lower)
	case upper != nil:
		return "<= " + formatFloat(*upper)
	default:
		return "-"
	}
}

func eventLabel(event string) string {
	switch event {
	case alarmapp.EventAccepted:
		return "Accepted"
	case alarmapp.EventDismissed:
		return "Dismissed"
	default:
		return event
	}
}

func formatFloat(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func (n *Notifier) shouldSend(key, content string) bool {
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(key, content string) {
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func notificationKey(alarmID int64, eventType string) string {
	return strconv.FormatInt(alarmID, 10) + "|" + eventType
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

var _ alarmapp.AlarmNotifier = (*Notifier)(nil)
