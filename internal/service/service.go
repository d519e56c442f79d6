package service

import (
	"context"
	"sync"

	"github.com/ds124wfegd/sam3d-worker/internal/database"
	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/finisher"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/kafka"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/model"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/processor"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/remote"
)

type JobService interface {
	Execute(ctx context.Context, req entity.JobRequest) entity.JobResult
}

type QueueService interface {
	RunSync(ctx context.Context, input entity.JobInput) (*entity.JobRecord, error)
	Submit(ctx context.Context, input entity.JobInput) (*entity.SubmitResponse, error)
	Status(ctx context.Context, id string) (*entity.JobRecord, error)
	Process(ctx context.Context, req entity.JobRequest) error
	Reject(ctx context.Context, id string, cause error) error
}

// jobService runs at most one job at a time per process.
type jobService struct {
	running     sync.Mutex
	provider    *model.Provider
	aligner     processor.ImageAligner
	finisher    finisher.MeshFinisher
	remote      remote.Client
	defaultSeed int
}

func NewJobService(provider *model.Provider, aligner processor.ImageAligner, finisher finisher.MeshFinisher, remote remote.Client, defaultSeed int) JobService {
	if defaultSeed == 0 {
		defaultSeed = entity.DefaultSeed
	}
	return &jobService{
		provider:    provider,
		aligner:     aligner,
		finisher:    finisher,
		remote:      remote,
		defaultSeed: defaultSeed,
	}
}

type queueService struct {
	repo     database.JobRepository
	producer kafka.Producer
	jobs     JobService
}

func NewQueueService(repo database.JobRepository, producer kafka.Producer, jobs JobService) QueueService {
	return &queueService{
		repo:     repo,
		producer: producer,
		jobs:     jobs,
	}
}
