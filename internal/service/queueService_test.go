package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ds124wfegd/sam3d-worker/internal/database"
	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/kafka"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/storage"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedJobService возвращает заранее заданный результат
type fixedJobService struct {
	result   entity.JobResult
	requests []entity.JobRequest
}

func (s *fixedJobService) Execute(ctx context.Context, req entity.JobRequest) entity.JobResult {
	s.requests = append(s.requests, req)
	return s.result
}

func newTestQueueService(result entity.JobResult) (QueueService, database.JobRepository, *kafka.MemoryQueue, *fixedJobService) {
	repo := database.NewJobRepository(storage.NewFileStorage(afero.NewMemMapFs(), "/storage"))
	q := kafka.NewMemoryQueue(10)
	jobs := &fixedJobService{result: result}
	return NewQueueService(repo, q, jobs), repo, q, jobs
}

var inlineSuccess = entity.JobResult{
	Kind:     entity.PayloadInline,
	State:    entity.StateSucceeded,
	Artifact: []byte("mesh"),
}

// TestRunSync проверяет синхронное выполнение и сохранение результата
func TestRunSync(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, jobs := newTestQueueService(inlineSuccess)

	record, err := svc.RunSync(ctx, entity.JobInput{Image: "a", Mask: "b"})
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, entity.StatusCompleted, record.Status)
	assert.JSONEq(t, `{"glb_file":"bWVzaA=="}`, string(record.Output))
	require.Len(t, jobs.requests, 1)
	assert.Equal(t, record.ID, jobs.requests[0].ID)

	stored, err := repo.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, stored.Status)
}

// TestRunSyncHandlerFailure: ошибка обработки не делает задачу FAILED
func TestRunSyncHandlerFailure(t *testing.T) {
	svc, _, _, _ := newTestQueueService(entity.JobResult{
		Kind:  entity.PayloadRemote,
		State: entity.StateFailed,
		Err:   entity.NewJobError(entity.ErrFetch, "Failed to download image from http://x/i.png", errors.New("unexpected status 404 Not Found")),
	})

	record, err := svc.RunSync(context.Background(), entity.JobInput{ImageURL: "http://x/i.png"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, record.Status)
	assert.JSONEq(t,
		`{"status":"failed","error":"Failed to download image from http://x/i.png: unexpected status 404 Not Found"}`,
		string(record.Output))
}

// TestSubmitAndProcess проверяет асинхронный путь через очередь
func TestSubmitAndProcess(t *testing.T) {
	ctx := context.Background()
	svc, _, q, jobs := newTestQueueService(inlineSuccess)

	resp, err := svc.Submit(ctx, entity.JobInput{Image: "a", Mask: "b"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInQueue, resp.Status)

	status, err := svc.Status(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInQueue, status.Status)

	d, err := q.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, string(d.Key))

	var req entity.JobRequest
	require.NoError(t, json.Unmarshal(d.Value, &req))
	assert.Equal(t, resp.ID, req.ID)
	assert.Equal(t, "a", req.Input.Image)

	require.NoError(t, svc.Process(ctx, req))
	require.Len(t, jobs.requests, 1)

	status, err = svc.Status(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, status.Status)
	assert.NotEmpty(t, status.Output)
	assert.False(t, status.UpdatedAt.Before(status.CreatedAt))
}

func TestSubmitQueueClosed(t *testing.T) {
	svc, _, q, jobs := newTestQueueService(inlineSuccess)
	require.NoError(t, q.Close())

	resp, err := svc.Submit(context.Background(), entity.JobInput{Image: "a", Mask: "b"})
	assert.ErrorIs(t, err, kafka.ErrClosed)
	assert.Nil(t, resp)
	assert.Empty(t, jobs.requests)
}

func TestProcessUnknownJob(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestQueueService(inlineSuccess)

	require.NoError(t, svc.Process(ctx, entity.JobRequest{ID: "from-other-producer"}))

	record, err := svc.Status(ctx, "from-other-producer")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, record.Status)
}

func TestStatusNotFound(t *testing.T) {
	svc, _, _, _ := newTestQueueService(inlineSuccess)

	_, err := svc.Status(context.Background(), "nope")
	assert.ErrorIs(t, err, entity.ErrJobNotFound)
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	svc, _, _, jobs := newTestQueueService(inlineSuccess)

	require.NoError(t, svc.Reject(ctx, "bad-job", errors.New("malformed job payload")))

	record, err := svc.Status(ctx, "bad-job")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, record.Status)
	assert.Equal(t, "malformed job payload", record.Error)
	assert.Empty(t, jobs.requests)
}

// TestRunSyncIgnoresCancel: начатая задача доводится до конца
func TestRunSyncIgnoresCancel(t *testing.T) {
	svc, _, _, _ := newTestQueueService(inlineSuccess)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(2 * time.Millisecond)

	record, err := svc.RunSync(ctx, entity.JobInput{Image: "a", Mask: "b"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, record.Status)
}
