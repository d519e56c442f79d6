package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/redis/go-redis/v9"
)

func NewRedisJobRepository(ctx context.Context, client *redis.Client, ttl time.Duration) (JobRepository, error) {
	// Проверка подключения
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &redisJobRepository{client: client, ttl: ttl}, nil
}

func jobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}

func (r *redisJobRepository) Save(ctx context.Context, job *entity.JobRecord) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	return r.client.Set(ctx, jobKey(job.ID), data, r.ttl).Err()
}

func (r *redisJobRepository) FindByID(ctx context.Context, id string) (*entity.JobRecord, error) {
	data, err := r.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, entity.ErrJobNotFound
		}
		return nil, err
	}

	var job entity.JobRecord
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}
