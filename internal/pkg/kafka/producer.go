package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// MaxMessageBytes bounds one queued job on both ends. Inline jobs carry base64
// images, so the broker's message.max.bytes must allow at least this much.
const MaxMessageBytes = 64 << 20

type Producer interface {
	SendMessage(ctx context.Context, key string, message interface{}) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
}

func newKafkaProducer(brokers []string, topic string) *kafkaProducer {
	return &kafkaProducer{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchBytes:   MaxMessageBytes,
		RequiredAcks: kafka.RequireOne,
	}}
}

func (p *kafkaProducer) SendMessage(ctx context.Context, key string, message interface{}) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: messageBytes,
		Time:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logrus.WithError(err).WithField("key", key).Error("failed to write message to kafka")
		return err
	}

	logrus.WithFields(logrus.Fields{"topic": p.writer.Topic, "key": key}).Debug("message sent")
	return nil
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}
