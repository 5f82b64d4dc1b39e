package notify

import (
	"context"
	"log/slog"

	jsoniter "github.com/json-iterator/go"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the subset of *kgo.Client used here.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// KafkaObserver publishes every event as JSON keyed by item, fire-and-forget.
type KafkaObserver struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

func NewKafkaObserver(producer Producer, topic string, logger *slog.Logger) *KafkaObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaObserver{producer: producer, topic: topic, logger: logger}
}

func (k *KafkaObserver) Update(ctx context.Context, ev Event) {
	value, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(ev)
	if err != nil {
		k.logger.ErrorContext(ctx, "encode event", "event", ev.Type, "error", err)
		return
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(ev.ItemID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	// produce outlives the request
	k.producer.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			k.logger.Error("publish event", "event", ev.Type, "topic", r.Topic, "error", err)
		}
	})
}

// NewKafkaClient dials the brokers with the topic as produce default.
func NewKafkaClient(brokers []string, topic string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
}
