package database

import (
	"context"
	"time"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/storage"
	"github.com/redis/go-redis/v9"
)

// JobRepository stores platform job records. FindByID returns
// entity.ErrJobNotFound for unknown ids.
type JobRepository interface {
	Save(ctx context.Context, job *entity.JobRecord) error
	FindByID(ctx context.Context, id string) (*entity.JobRecord, error)
}

type fileJobRepository struct {
	storage storage.FileStorage
}

type redisJobRepository struct {
	client *redis.Client
	ttl    time.Duration
}
