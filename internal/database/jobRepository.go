package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/storage"
)

func NewJobRepository(storage storage.FileStorage) JobRepository {
	return &fileJobRepository{storage: storage}
}

func (r *fileJobRepository) Save(_ context.Context, job *entity.JobRecord) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	return r.storage.Save(r.jobPath(job.ID), bytes.NewReader(data))
}

func (r *fileJobRepository) FindByID(_ context.Context, id string) (*entity.JobRecord, error) {
	reader, err := r.storage.Get(r.jobPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, entity.ErrJobNotFound
		}
		return nil, err
	}
	defer reader.Close()

	var job entity.JobRecord
	if err := json.NewDecoder(reader).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (r *fileJobRepository) jobPath(id string) string {
	// ids come from the outside on status lookups
	return filepath.Join("jobs", filepath.Base(filepath.Clean("/"+id))+".json")
}
