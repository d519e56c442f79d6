package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func (s *queueService) RunSync(ctx context.Context, input entity.JobInput) (*entity.JobRecord, error) {
	now := time.Now().UTC()
	record := &entity.JobRecord{
		ID:        uuid.New().String(),
		Status:    entity.StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}
	return s.complete(ctx, record, entity.JobRequest{ID: record.ID, Input: input})
}

func (s *queueService) Submit(ctx context.Context, input entity.JobInput) (*entity.SubmitResponse, error) {
	now := time.Now().UTC()
	record := &entity.JobRecord{
		ID:        uuid.New().String(),
		Status:    entity.StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	if err := s.producer.SendMessage(ctx, record.ID, entity.JobRequest{ID: record.ID, Input: input}); err != nil {
		if rejectErr := s.Reject(ctx, record.ID, err); rejectErr != nil {
			logrus.WithError(rejectErr).WithField("job_id", record.ID).Error("could not mark job as failed")
		}
		return nil, fmt.Errorf("enqueue job %s: %w", record.ID, err)
	}

	logrus.WithField("job_id", record.ID).Info("job queued")
	return &entity.SubmitResponse{ID: record.ID, Status: entity.StatusInQueue}, nil
}

func (s *queueService) Status(ctx context.Context, id string) (*entity.JobRecord, error) {
	return s.repo.FindByID(ctx, id)
}

// Process runs a queued job to completion and stores its output.
func (s *queueService) Process(ctx context.Context, req entity.JobRequest) error {
	record, err := s.repo.FindByID(ctx, req.ID)
	if errors.Is(err, entity.ErrJobNotFound) {
		record = &entity.JobRecord{ID: req.ID, CreatedAt: time.Now().UTC()}
	} else if err != nil {
		return err
	}

	record.Status = entity.StatusInProgress
	record.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, record); err != nil {
		return err
	}

	_, err = s.complete(ctx, record, req)
	return err
}

// Reject marks a job FAILED without running it.
func (s *queueService) Reject(ctx context.Context, id string, cause error) error {
	record, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, entity.ErrJobNotFound) {
		record = &entity.JobRecord{ID: id, CreatedAt: time.Now().UTC()}
	} else if err != nil {
		return err
	}
	record.Status = entity.StatusFailed
	record.Error = cause.Error()
	record.UpdatedAt = time.Now().UTC()
	return s.repo.Save(ctx, record)
}

// complete executes the job detached from the caller's cancellation: once
// started, a job runs to its terminal state.
func (s *queueService) complete(ctx context.Context, record *entity.JobRecord, req entity.JobRequest) (*entity.JobRecord, error) {
	start := time.Now()
	result := s.jobs.Execute(context.WithoutCancel(ctx), req)

	output, err := json.Marshal(RenderOutput(result))
	if err != nil {
		return nil, fmt.Errorf("encode output of job %s: %w", record.ID, err)
	}

	// handler level failures still complete the job, the error travels in output
	record.Status = entity.StatusCompleted
	record.Output = output
	record.ExecutionTime = time.Since(start).Milliseconds()
	record.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(context.WithoutCancel(ctx), record); err != nil {
		return nil, err
	}
	return record, nil
}
