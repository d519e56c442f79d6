// Package client talks to a running worker over its job platform API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/codec"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const DefaultPollInterval = 5 * time.Second

type Client interface {
	RunSync(ctx context.Context, input entity.JobInput) (*entity.JobRecord, error)
	Submit(ctx context.Context, input entity.JobInput) (*entity.SubmitResponse, error)
	Status(ctx context.Context, id string) (*entity.JobRecord, error)
	// Wait polls Status until the job is COMPLETED or FAILED.
	Wait(ctx context.Context, id string) (*entity.JobRecord, error)
}

type Options struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	PollInterval time.Duration
}

type restyClient struct {
	client       *resty.Client
	pollInterval time.Duration
}

func NewClient(opts Options) Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json")
	if opts.APIKey != "" {
		client.SetAuthToken(opts.APIKey)
	}

	return &restyClient{client: client, pollInterval: opts.PollInterval}
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *restyClient) RunSync(ctx context.Context, input entity.JobInput) (*entity.JobRecord, error) {
	var record entity.JobRecord
	if err := c.post(ctx, "/runsync", input, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *restyClient) Submit(ctx context.Context, input entity.JobInput) (*entity.SubmitResponse, error) {
	var resp entity.SubmitResponse
	if err := c.post(ctx, "/run", input, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *restyClient) Status(ctx context.Context, id string) (*entity.JobRecord, error) {
	var record entity.JobRecord
	var errBody errorBody

	res, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&record).
		SetError(&errBody).
		Get("/status/{id}")
	if err != nil {
		return nil, fmt.Errorf("status of job %s: %w", id, err)
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, entity.ErrJobNotFound
	}
	if res.IsError() {
		return nil, apiError(res, errBody)
	}
	return &record, nil
}

func (c *restyClient) Wait(ctx context.Context, id string) (*entity.JobRecord, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		record, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}

		logrus.WithFields(logrus.Fields{"job_id": id, "status": record.Status}).Debug("job status")
		if record.Status == entity.StatusCompleted || record.Status == entity.StatusFailed {
			return record, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *restyClient) post(ctx context.Context, path string, input entity.JobInput, result any) error {
	var errBody errorBody

	res, err := c.client.R().
		SetContext(ctx).
		SetBody(entity.JobRequest{Input: input}).
		SetResult(result).
		SetError(&errBody).
		Post(path)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	if res.IsError() {
		return apiError(res, errBody)
	}
	return nil
}

func apiError(res *resty.Response, body errorBody) error {
	if body.Error != "" {
		return fmt.Errorf("%s: %s", res.Status(), body.Error)
	}
	return fmt.Errorf("unexpected status %s", res.Status())
}

// DecodeInlineOutput extracts the mesh from the output of an inline job.
func DecodeInlineOutput(record *entity.JobRecord) ([]byte, error) {
	if record.Status == entity.StatusFailed {
		return nil, fmt.Errorf("job %s failed: %s", record.ID, record.Error)
	}

	var out entity.InlineOutput
	if err := json.Unmarshal(record.Output, &out); err != nil {
		return nil, fmt.Errorf("decode output of job %s: %w", record.ID, err)
	}
	if out.Error != "" {
		return nil, errors.New(out.Error)
	}
	if out.GLBFile == "" {
		return nil, fmt.Errorf("job %s returned no mesh", record.ID)
	}
	return codec.DecodeMesh(out.GLBFile)
}
