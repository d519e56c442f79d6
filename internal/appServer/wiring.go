package appServer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ds124wfegd/sam3d-worker/config"
	"github.com/ds124wfegd/sam3d-worker/internal/database"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/finisher"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/kafka"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/model"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/processor"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/remote"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/storage"
	"github.com/ds124wfegd/sam3d-worker/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Pipeline is the job orchestrator together with its shared model handle.
type Pipeline struct {
	Jobs     service.JobService
	Provider *model.Provider
}

func NewPipeline(cfg *config.Config, fs afero.Fs) *Pipeline {
	log := logrus.StandardLogger()

	loader := model.NewSidecarLoader(
		config.NewCheckpointResolver(fs, cfg.Model),
		model.SidecarOptions{
			BaseURL:          cfg.Model.InferenceURL,
			InitTimeout:      cfg.Model.InitTimeout,
			InferenceTimeout: cfg.Model.InferenceTimeout,
		},
	)
	provider := model.NewProvider(loader)

	remoteClient := remote.NewClient(remote.Options{
		UserAgent:       cfg.Transport.UserAgent,
		FetchTimeout:    cfg.Transport.FetchTimeout,
		DeliveryTimeout: cfg.Transport.DeliveryTimeout,
	})

	jobs := service.NewJobService(
		provider,
		processor.NewImageAligner(log),
		finisher.NewMeshFinisher(log),
		remoteClient,
		cfg.Worker.DefaultSeed,
	)
	return &Pipeline{Jobs: jobs, Provider: provider}
}

// NewJobRepository stores job records in Redis when an address is configured
// and on the local file system otherwise.
func NewJobRepository(ctx context.Context, cfg *config.Config, fs afero.Fs) (database.JobRepository, func() error, error) {
	if cfg.Redis.Addr == "" {
		repo := database.NewJobRepository(storage.NewFileStorage(fs, cfg.Storage.BasePath))
		logrus.WithField("base_path", cfg.Storage.BasePath).Info("job records stored on disk")
		return repo, func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	repo, err := database.NewRedisJobRepository(ctx, client, cfg.Redis.TTL)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	logrus.WithField("addr", cfg.Redis.Addr).Info("job records stored in redis")
	return repo, client.Close, nil
}

// ErrNoConsumer: jobs would stay in an in-memory queue that no worker reads.
var ErrNoConsumer = errors.New("kafka is unreachable and the embedded worker is disabled, queued jobs would never run")

// App is everything the API process runs.
type App struct {
	Pipeline *Pipeline
	Queue    service.QueueService
	Consumer kafka.Consumer

	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	fs := afero.NewOsFs()
	pipeline := NewPipeline(cfg, fs)

	repo, closeRepo, err := NewJobRepository(ctx, cfg, fs)
	if err != nil {
		return nil, err
	}

	producer, consumer := kafka.NewQueue(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	if _, inMemory := consumer.(*kafka.MemoryQueue); inMemory && !cfg.Worker.Embedded {
		producer.Close()
		closeRepo()
		return nil, ErrNoConsumer
	}

	return &App{
		Pipeline: pipeline,
		Queue:    service.NewQueueService(repo, producer, pipeline.Jobs),
		Consumer: consumer,
		closers:  []func() error{producer.Close, consumer.Close, closeRepo},
	}, nil
}

func (a *App) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			logrus.WithError(err).Warn("error while closing resources")
		}
	}
}
