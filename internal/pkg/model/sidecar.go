package model

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/codec"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// ConfigLocator resolves the pipeline config file the model is built from.
type ConfigLocator interface {
	Resolve() (string, error)
}

type SidecarOptions struct {
	BaseURL          string
	InitTimeout      time.Duration
	InferenceTimeout time.Duration
}

type loadRequest struct {
	ConfigPath string `json:"config_path"`
	Compile    bool   `json:"compile"`
}

type reconstructResponse struct {
	Outputs map[string]string `json:"outputs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// sidecar talks to the Python inference service that hosts the pipeline.
type sidecar struct {
	client  *resty.Client
	timeout time.Duration
}

// NewSidecarLoader returns a Loader that resolves the pipeline config and asks
// the inference service to load it.
func NewSidecarLoader(locator ConfigLocator, opts SidecarOptions) Loader {
	return func(ctx context.Context) (Reconstructor, error) {
		configPath, err := locator.Resolve()
		if err != nil {
			return nil, entity.NewJobError(entity.ErrModelInit, "", err)
		}

		client := resty.New().SetBaseURL(opts.BaseURL)

		if opts.InitTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.InitTimeout)
			defer cancel()
		}

		var apiErr errorResponse
		res, err := client.R().
			SetContext(ctx).
			SetBody(loadRequest{ConfigPath: configPath, Compile: false}).
			SetError(&apiErr).
			Post("/load")
		if err != nil {
			return nil, entity.NewJobError(entity.ErrModelInit, "inference service unreachable", err)
		}
		if !res.IsSuccess() {
			return nil, entity.NewJobError(entity.ErrModelInit, "inference service refused to load "+configPath, errors.New(describe(res, apiErr)))
		}

		logrus.WithField("config_path", configPath).Info("pipeline config loaded by inference service")
		return &sidecar{client: client, timeout: opts.InferenceTimeout}, nil
	}
}

func (s *sidecar) Reconstruct(ctx context.Context, pair entity.AlignedPair, seed int) (Output, error) {
	imagePNG, err := codec.EncodePNG(pair.Image.Image())
	if err != nil {
		return nil, entity.NewJobError(entity.ErrInternal, "", err)
	}
	maskPNG, err := codec.EncodePNG(pair.Mask.Image())
	if err != nil {
		return nil, entity.NewJobError(entity.ErrInternal, "", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var (
		out    reconstructResponse
		apiErr errorResponse
	)
	res, err := s.client.R().
		SetContext(ctx).
		SetFileReader("image", "image.png", bytes.NewReader(imagePNG)).
		SetFileReader("mask", "mask.png", bytes.NewReader(maskPNG)).
		SetFormData(map[string]string{"seed": strconv.Itoa(seed)}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/reconstruct")
	if err != nil {
		return nil, entity.NewJobError(entity.ErrInference, "", err)
	}
	if !res.IsSuccess() {
		return nil, entity.NewJobError(entity.ErrInference, "", errors.New(describe(res, apiErr)))
	}

	output := make(Output, len(out.Outputs))
	for name, encoded := range out.Outputs {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, entity.NewJobError(entity.ErrInference, "malformed output "+name, err)
		}
		output[name] = raw
	}
	return output, nil
}

func describe(res *resty.Response, apiErr errorResponse) string {
	if apiErr.Error != "" {
		return apiErr.Error
	}
	return fmt.Sprintf("inference service returned %s", res.Status())
}
