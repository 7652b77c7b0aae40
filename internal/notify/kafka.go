package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes every event on one topic, keyed by note id.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  10 * time.Second,
		},
	}
}

func (k *KafkaNotifier) Notify(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.NoteID, 10)),
		Value: value,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(ev.Action)},
		},
	})
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
