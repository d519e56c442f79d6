package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrClosed is returned by Fetch once the queue is closed.
var ErrClosed = errors.New("queue closed")

// Delivery is one queued message. Commit acknowledges it so it is not
// redelivered after a restart.
type Delivery struct {
	Key    []byte
	Value  []byte
	commit func(ctx context.Context) error
}

func (d Delivery) Commit(ctx context.Context) error {
	if d.commit == nil {
		return nil
	}
	return d.commit(ctx)
}

type Consumer interface {
	// Fetch blocks until a message is available.
	Fetch(ctx context.Context) (Delivery, error)
	Close() error
}

type kafkaConsumer struct {
	reader *kafka.Reader
}

func newKafkaConsumer(brokers []string, topic, groupID string) *kafkaConsumer {
	return &kafkaConsumer{reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    MaxMessageBytes,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
	})}
}

func (c *kafkaConsumer) Fetch(ctx context.Context) (Delivery, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Delivery{}, ErrClosed
		}
		return Delivery{}, err
	}
	return Delivery{
		Key:   msg.Key,
		Value: msg.Value,
		commit: func(ctx context.Context) error {
			return c.reader.CommitMessages(ctx, msg)
		},
	}, nil
}

func (c *kafkaConsumer) Close() error {
	return c.reader.Close()
}
