package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/kafka"
	"github.com/ds124wfegd/sam3d-worker/internal/service"
	"github.com/sirupsen/logrus"
)

const fetchRetryDelay = time.Second

// JobWorker drains the job queue one job at a time.
type JobWorker interface {
	Run(ctx context.Context) error
}

type jobWorker struct {
	consumer kafka.Consumer
	jobs     service.QueueService
	log      logrus.FieldLogger
}

func NewJobWorker(consumer kafka.Consumer, jobs service.QueueService, log logrus.FieldLogger) JobWorker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &jobWorker{consumer: consumer, jobs: jobs, log: log}
}

// Run returns when ctx is done or the queue is closed.
func (w *jobWorker) Run(ctx context.Context) error {
	w.log.Info("job worker started")
	defer w.log.Info("job worker stopped")

	for {
		d, err := w.consumer.Fetch(ctx)
		if err != nil {
			if errors.Is(err, kafka.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			w.log.WithError(err).Error("error reading job from queue")
			select {
			case <-time.After(fetchRetryDelay):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		w.handle(ctx, d)

		if err := d.Commit(context.WithoutCancel(ctx)); err != nil {
			w.log.WithError(err).WithField("key", string(d.Key)).Error("failed to commit job")
		}
	}
}

func (w *jobWorker) handle(ctx context.Context, d kafka.Delivery) {
	var req entity.JobRequest
	if err := json.Unmarshal(d.Value, &req); err != nil || req.ID == "" {
		if err == nil {
			err = errors.New("missing job id")
		}
		w.reject(ctx, string(d.Key), fmt.Errorf("malformed job payload: %w", err))
		return
	}

	entry := w.log.WithField("job_id", req.ID)
	entry.Info("job picked up")

	start := time.Now()
	if err := w.jobs.Process(ctx, req); err != nil {
		entry.WithError(err).Error("job processing failed")
		return
	}
	entry.WithField("duration", time.Since(start).String()).Info("job finished")
}

func (w *jobWorker) reject(ctx context.Context, id string, cause error) {
	entry := w.log.WithError(cause).WithField("job_id", id)
	if id == "" {
		entry.Error("dropping job without id")
		return
	}
	entry.Warn("rejecting job")
	if err := w.jobs.Reject(context.WithoutCancel(ctx), id, cause); err != nil {
		entry.WithError(err).Error("could not mark job as failed")
	}
}
