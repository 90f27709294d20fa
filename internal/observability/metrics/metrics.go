package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "alarmdash_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	alarmListTotal   *prometheus.CounterVec
	alarmListLatency *prometheus.HistogramVec

	transitionTotal   *prometheus.CounterVec
	transitionLatency *prometheus.HistogramVec

	dashboardRefreshTotal   *prometheus.CounterVec
	dashboardRefreshLatency *prometheus.HistogramVec
	dashboardSubscribers    prometheus.Gauge

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	notificationTotal *prometheus.CounterVec
	auditFailures     prometheus.Counter
	alarmEventsTotal  *prometheus.CounterVec
)

// Init registers dashboard metrics and the store-backed gauges.
func Init(store OpenAlarmCounter, logger *zap.SugaredLogger) {
	registerOnce.Do(func() {
		alarmListTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_list_total",
				Help: "Total open alarm list queries by window and result",
			},
			[]string{"window", "result"},
		)
		alarmListLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "alarm_list_latency_seconds",
				Help:    "Open alarm list latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"window", "result"},
		)

		transitionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_transition_total",
				Help: "Total alarm transitions by target status and outcome",
			},
			[]string{"status", "outcome"},
		)
		transitionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "alarm_transition_latency_seconds",
				Help:    "Alarm transition latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)

		dashboardRefreshTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "dashboard_refresh_total",
				Help: "Total dashboard refreshes by trigger and result",
			},
			[]string{"trigger", "result"},
		)
		dashboardRefreshLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "dashboard_refresh_latency_seconds",
				Help:    "Dashboard refresh latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		dashboardSubscribers = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "dashboard_subscribers",
				Help: "Connected dashboard push subscribers",
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total alarm exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Alarm export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		notificationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notification_total",
				Help: "Total notification deliveries by channel and result",
			},
			[]string{"channel", "result"},
		)
		auditFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "audit_failures_total",
				Help: "Audit log writes that failed",
			},
		)
		alarmEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_events_total",
				Help: "Total alarm lifecycle events by type",
			},
			[]string{"event"},
		)

		prometheus.MustRegister(
			alarmListTotal,
			alarmListLatency,
			transitionTotal,
			transitionLatency,
			dashboardRefreshTotal,
			dashboardRefreshLatency,
			dashboardSubscribers,
			exportTotal,
			exportLatency,
			notificationTotal,
			auditFailures,
			alarmEventsTotal,
		)

		if store != nil {
			registerStoreMetrics(store, logger)
		}
	})
}

// ObserveAlarmList records an open alarm list query.
func ObserveAlarmList(window, result string, duration time.Duration) {
	if window == "" {
		window = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if alarmListTotal != nil {
		alarmListTotal.WithLabelValues(window, result).Inc()
	}
	if alarmListLatency != nil {
		alarmListLatency.WithLabelValues(window, result).Observe(duration.Seconds())
	}
}

// ObserveTransition records a transition attempt.
func ObserveTransition(status, outcome string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	if transitionTotal != nil {
		transitionTotal.WithLabelValues(status, outcome).Inc()
	}
	if transitionLatency != nil {
		transitionLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// ObserveDashboardRefresh records a refresh and what triggered it.
func ObserveDashboardRefresh(trigger, result string, duration time.Duration) {
	if trigger == "" {
		trigger = "manual"
	}
	if result == "" {
		result = resultSuccess
	}
	if dashboardRefreshTotal != nil {
		dashboardRefreshTotal.WithLabelValues(trigger, result).Inc()
	}
	if dashboardRefreshLatency != nil {
		dashboardRefreshLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddDashboardSubscribers adjusts the push subscriber gauge.
func AddDashboardSubscribers(delta int) {
	if dashboardSubscribers != nil {
		dashboardSubscribers.Add(float64(delta))
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncNotification counts a notification delivery attempt.
func IncNotification(channel, result string) {
	if channel == "" {
		channel = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if notificationTotal != nil {
		notificationTotal.WithLabelValues(channel, result).Inc()
	}
}

// IncAuditFailure counts a failed audit write.
func IncAuditFailure() {
	if auditFailures != nil {
		auditFailures.Inc()
	}
}

// IncAlarmEvent increments alarm lifecycle counters.
func IncAlarmEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alarmEventsTotal != nil {
		alarmEventsTotal.WithLabelValues(event).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
