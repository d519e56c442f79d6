package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// NewQueue connects both ends of the job queue to Kafka. When the broker can
// not be reached the jobs stay in process on a MemoryQueue instead.
func NewQueue(brokers []string, topic, groupID string) (Producer, Consumer) {
	log := logrus.WithFields(logrus.Fields{"brokers": brokers, "topic": topic})

	if len(brokers) == 0 {
		log.Warn("no kafka brokers configured, using in-memory queue")
		q := NewMemoryQueue(0)
		return q, q
	}

	// Проверяем подключение и создаем топик
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		log.WithError(err).Warn("kafka connection failed, using in-memory queue")
		q := NewMemoryQueue(0)
		return q, q
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
		ConfigEntries: []kafka.ConfigEntry{
			{ConfigName: "max.message.bytes", ConfigValue: strconv.Itoa(MaxMessageBytes)},
		},
	})
	if err != nil {
		log.WithError(err).Info("could not create topic (might already exist)")
	}

	log.Info("connected to kafka")
	return newKafkaProducer(brokers, topic), newKafkaConsumer(brokers, topic, groupID)
}

// NewConsumer attaches to an existing topic without the fallback. Used by the
// standalone worker which has nothing to share a memory queue with.
func NewConsumer(brokers []string, topic, groupID string) Consumer {
	return newKafkaConsumer(brokers, topic, groupID)
}

// NewProducer writes to the topic without probing the broker first.
func NewProducer(brokers []string, topic string) Producer {
	return newKafkaProducer(brokers, topic)
}
