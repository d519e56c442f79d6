// Ininicializing common application configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Transport TransportConfig `mapstructure:"transport"`
	Model     ModelConfig     `mapstructure:"model"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

type ServerConfig struct {
	AppVersion   string `json:"appVersion"`
	Host         string `json:"host" validate:"required"`
	Port         string `json:"port" validate:"required"`
	Timeout      time.Duration
	Idle_timeout time.Duration
	Env          string `json:"environment"`
	Mode         string `mapstructure:"mode"`
}

type WorkerConfig struct {
	// Embedded starts the queue consumer inside the API process.
	Embedded    bool `mapstructure:"embedded"`
	DefaultSeed int  `mapstructure:"default_seed"`
}

type TransportConfig struct {
	UserAgent       string        `mapstructure:"user_agent"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
}

type ModelConfig struct {
	InferenceURL     string        `mapstructure:"inference_url"`
	CheckpointDir    string        `mapstructure:"checkpoint_dir"`
	InitTimeout      time.Duration `mapstructure:"init_timeout"`
	InferenceTimeout time.Duration `mapstructure:"inference_timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type StorageConfig struct {
	BasePath string `mapstructure:"base_path"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func LoadConfig() (*viper.Viper, error) {

	// .env is optional, real environment wins
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("could not load .env file: %v", err)
	}

	viperInstance := viper.New()

	viperInstance.AddConfigPath("./config")
	viperInstance.SetConfigName("config")
	viperInstance.SetConfigType("yaml")

	setDefaults(viperInstance)

	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperInstance.AutomaticEnv()

	err := viperInstance.ReadInConfig()

	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		logrus.Warn("config file not found, using defaults and environment")
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {

	var c Config

	err := v.Unmarshal(&c)
	if err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.appVersion", "1.0.0")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.timeout", 10*time.Minute)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("worker.embedded", true)
	v.SetDefault("worker.default_seed", 42)

	v.SetDefault("transport.user_agent", "sam3d-worker/1.0")
	v.SetDefault("transport.fetch_timeout", 30*time.Second)
	v.SetDefault("transport.delivery_timeout", 60*time.Second)

	v.SetDefault("model.inference_url", "http://localhost:8000")
	v.SetDefault("model.checkpoint_dir", "")
	v.SetDefault("model.init_timeout", 5*time.Minute)
	v.SetDefault("model.inference_timeout", 10*time.Minute)

	v.SetDefault("kafka.brokers", []string{"localhost:9094"})
	v.SetDefault("kafka.topic", "sam3d-jobs")
	v.SetDefault("kafka.group_id", "sam3d-worker")

	v.SetDefault("storage.base_path", "./storage")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
