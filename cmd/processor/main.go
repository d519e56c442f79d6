package main

import (
	"strings"

	"github.com/ds124wfegd/sam3d-worker/config"
	"github.com/ds124wfegd/sam3d-worker/internal/appServer"
	"github.com/sirupsen/logrus"
)

func main() {
	viperInstance, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Cannot load config. Error: {%s}", err.Error())
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		logrus.Fatalf("Cannot parse config. Error: {%s}", err.Error())
	}

	if brokers := config.GetEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	cfg.Kafka.Topic = config.GetEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.GroupID = config.GetEnv("KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	appServer.NewProcessor(cfg)
}
