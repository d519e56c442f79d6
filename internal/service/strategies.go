package service

import (
	"context"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/codec"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/remote"
)

// inputSource obtains the raw image and mask rasters for a job.
type inputSource interface {
	obtain(ctx context.Context) (img codec.Raster, mask codec.Raster, err error)
}

// resultSink hands the finished mesh to the caller. Inline sinks return the
// artifact, remote sinks return nil after upload.
type resultSink interface {
	deliver(ctx context.Context, glb []byte) ([]byte, error)
}

type inlineSource struct {
	payload entity.InlinePayload
}

func (s inlineSource) obtain(ctx context.Context) (codec.Raster, codec.Raster, error) {
	img, err := codec.Decode(s.payload.Image)
	if err != nil {
		return codec.Raster{}, codec.Raster{}, err
	}
	mask, err := codec.DecodeMask(s.payload.Mask)
	if err != nil {
		return codec.Raster{}, codec.Raster{}, err
	}
	return img, mask, nil
}

type remoteSource struct {
	payload entity.RemotePayload
	client  remote.Client
}

func (s remoteSource) obtain(ctx context.Context) (codec.Raster, codec.Raster, error) {
	rawImage, err := s.client.FetchImage(ctx, s.payload.ImageURL)
	if err != nil {
		return codec.Raster{}, codec.Raster{}, err
	}
	rawMask, err := s.client.FetchImage(ctx, s.payload.MaskURL)
	if err != nil {
		return codec.Raster{}, codec.Raster{}, err
	}

	img, err := codec.DecodeBytes(rawImage)
	if err != nil {
		return codec.Raster{}, codec.Raster{}, err
	}
	mask, err := codec.DecodeMaskBytes(rawMask)
	if err != nil {
		return codec.Raster{}, codec.Raster{}, err
	}
	return img, mask, nil
}

type inlineSink struct{}

func (inlineSink) deliver(ctx context.Context, glb []byte) ([]byte, error) {
	return glb, nil
}

type remoteSink struct {
	url    string
	client remote.Client
}

func (s remoteSink) deliver(ctx context.Context, glb []byte) ([]byte, error) {
	if err := s.client.Deliver(ctx, glb, s.url); err != nil {
		return nil, err
	}
	return nil, nil
}
