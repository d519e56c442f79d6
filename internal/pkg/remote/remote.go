// Package remote fetches job inputs from and delivers artifacts to URLs
// supplied by the caller. Every call is a single attempt.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	GLBContentType = "model/gltf-binary"
	BlobTypeHeader = "x-ms-blob-type"
	BlockBlob      = "BlockBlob"
)

type Client interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
	Deliver(ctx context.Context, data []byte, url string) error
}

type Options struct {
	UserAgent       string
	FetchTimeout    time.Duration
	DeliveryTimeout time.Duration
}

type restyClient struct {
	client *resty.Client
	opts   Options
}

func NewClient(opts Options) Client {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sam3d-worker/1.0"
	}

	client := resty.New().
		SetHeader("User-Agent", opts.UserAgent).
		SetRetryCount(0)

	return &restyClient{client: client, opts: opts}
}

func (c *restyClient) FetchImage(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()

	start := time.Now()
	res, err := c.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fetchError(url, err)
	}
	if !res.IsSuccess() {
		return nil, fetchError(url, fmt.Errorf("unexpected status %s", res.Status()))
	}

	logrus.WithFields(logrus.Fields{
		"url":      url,
		"bytes":    len(res.Body()),
		"duration": time.Since(start),
	}).Debug("input downloaded")
	return res.Body(), nil
}

func (c *restyClient) Deliver(ctx context.Context, data []byte, url string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.DeliveryTimeout)
	defer cancel()

	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", GLBContentType).
		SetHeader(BlobTypeHeader, BlockBlob).
		SetBody(data).
		Put(url)
	if err != nil {
		return deliveryError(url, err)
	}
	if !res.IsSuccess() {
		return deliveryError(url, fmt.Errorf("unexpected status %s", res.Status()))
	}

	logrus.WithFields(logrus.Fields{
		"url":   url,
		"bytes": len(data),
	}).Info("artifact uploaded")
	return nil
}

func fetchError(url string, err error) error {
	return entity.NewJobError(entity.ErrFetch, "Failed to download image from "+url, err)
}

func deliveryError(url string, err error) error {
	return entity.NewJobError(entity.ErrDelivery, "Failed to upload result to "+url, err)
}
