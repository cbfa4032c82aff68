package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const dispatchTimeout = 5 * time.Second

// KafkaDispatcher publishes booking events to Kafka, one topic per event
// type, keyed by appointment id so events for one appointment stay ordered.
type KafkaDispatcher struct {
	writer *kafka.Writer
	log    *slog.Logger
}

func NewKafkaDispatcher(brokers string, log *slog.Logger) *KafkaDispatcher {
	if log == nil {
		log = slog.Default()
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  SplitBrokers(brokers),
		Balancer: &kafka.Hash{},
	})
	return &KafkaDispatcher{
		writer: writer,
		log:    log.With(slog.String("component", "notify.kafka")),
	}
}

// Dispatch publishes asynchronously with a bounded timeout. Failures are
// logged and dropped; a lost notification must never roll back a booking.
func (d *KafkaDispatcher) Dispatch(ctx context.Context, evt Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
		defer cancel()

		payload, err := json.Marshal(evt)
		if err != nil {
			d.log.Error("event marshal failed", slog.Any("err", err), slog.String("event_type", evt.Type))
			return
		}

		err = d.writer.WriteMessages(ctx, kafka.Message{
			Topic: evt.Type,
			Key:   []byte(evt.AppointmentID.String()),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(evt.Type)},
			},
		})
		if err != nil {
			d.log.Error(
				"event publish failed",
				slog.Any("err", err),
				slog.String("event_type", evt.Type),
				slog.String("appointment_id", evt.AppointmentID.String()),
			)
			return
		}

		d.log.Debug(
			"event published",
			slog.String("event_type", evt.Type),
			slog.String("appointment_id", evt.AppointmentID.String()),
		)
	}()
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}

// SplitBrokers parses a comma-separated broker list, dropping empty entries.
func SplitBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
