package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// OpenAlarmCounter reports how many alarms are waiting for an operator.
type OpenAlarmCounter interface {
	CountOpen(ctx context.Context) (int64, error)
}

const gaugeQueryTimeout = 3 * time.Second

func registerStoreMetrics(store OpenAlarmCounter, logger *zap.SugaredLogger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "open_alarms",
			Help: "Alarms currently in the Open status",
		},
		func() float64 {
			return queryOpen(store, logger)
		},
	))
}

func queryOpen(store OpenAlarmCounter, logger *zap.SugaredLogger) float64 {
	if store == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), gaugeQueryTimeout)
	defer cancel()
	count, err := store.CountOpen(ctx)
	if err != nil {
		if logger != nil {
			logger.Warnf("metrics open alarm query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
