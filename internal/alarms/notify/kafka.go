package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	alarmapp "alarm-dashboard/internal/alarms/application"
	"alarm-dashboard/internal/observability/metrics"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes transition events to a Kafka topic keyed by alarm id.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewKafkaPublisher constructs a publisher for brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.SugaredLogger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher: no brokers")
	}
	if topic == "" {
		return nil, errors.New("kafka publisher: empty topic")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, logger), nil
}

func newKafkaPublisher(writer messageWriter, logger *zap.SugaredLogger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &KafkaPublisher{writer: writer, timeout: 5 * time.Second, logger: logger}
}

type kafkaEvent struct {
	Type       string              `json:"type"`
	OccurredAt time.Time           `json:"occurred_at"`
	Event      alarmapp.AlarmEvent `json:"event"`
}

// Notify implements AlarmNotifier.
func (p *KafkaPublisher) Notify(ctx context.Context, event alarmapp.AlarmEvent) {
	if p == nil || p.writer == nil {
		return
	}
	payload, err := json.Marshal(kafkaEvent{
		Type:       "alarm." + event.Type,
		OccurredAt: time.Now().UTC(),
		Event:      event,
	})
	if err != nil {
		p.logger.Warnw("kafka event encode failed", "alarm_id", event.Alarm.ID, "error", err)
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	err = p.writer.WriteMessages(sendCtx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.Alarm.ID, 10)),
		Value: payload,
	})
	if err != nil {
		metrics.IncNotification("kafka", metrics.ResultError)
		p.logger.Warnw("kafka publish failed", "alarm_id", event.Alarm.ID, "error", err)
		return
	}
	metrics.IncNotification("kafka", metrics.ResultSuccess)
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
