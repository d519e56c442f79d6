package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/codec"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/model"
	"github.com/sirupsen/logrus"
)

// Execute drives one job from request to a terminal state. It never panics
// and never returns a partially filled result. Concurrent calls wait for the
// running job to finish.
func (s *jobService) Execute(ctx context.Context, req entity.JobRequest) (result entity.JobResult) {
	s.running.Lock()
	defer s.running.Unlock()

	kind := req.Input.Kind()
	log := logrus.WithFields(logrus.Fields{"job_id": req.ID, "payload": kind.String()})
	lc := newLifecycle(log, kind)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Error("job panicked")
			result = lc.fail(entity.NewJobError(entity.ErrInternal, "", fmt.Errorf("%v", r)))
		}
	}()

	log.Info("job received")

	lc.advance(entity.StateValidating)
	source, sink, seed, err := s.plan(req.Input)
	if err != nil {
		return lc.fail(err)
	}

	lc.advance(entity.StatePreparing)
	reconstructor, err := s.provider.Get(ctx)
	if err != nil {
		return lc.fail(err)
	}

	img, mask, err := source.obtain(ctx)
	if err != nil {
		return lc.fail(err)
	}
	imgW, imgH := img.Size()
	maskW, maskH := mask.Size()
	log.WithFields(logrus.Fields{
		"image_width":  imgW,
		"image_height": imgH,
		"mask_width":   maskW,
		"mask_height":  maskH,
	}).Debug("inputs decoded")

	pair := s.aligner.Align(img, mask)
	if !pair.Aligned() {
		return lc.fail(entity.NewJobError(entity.ErrInternal, "image and mask are not aligned", nil))
	}

	lc.advance(entity.StateInferring)
	log.WithFields(logrus.Fields{
		"width":  pair.Image.Width,
		"height": pair.Image.Height,
		"seed":   seed,
	}).Info("running inference")

	output, err := reconstructor.Reconstruct(ctx, pair, seed)
	if err != nil {
		return lc.fail(asInferenceError(err))
	}
	glb, ok := output[model.MeshKey]
	if !ok || len(glb) == 0 {
		return lc.fail(entity.NewJobError(entity.ErrInference, entity.MsgNoMeshOutput, nil))
	}

	lc.advance(entity.StateFinalizing)
	finished, err := s.finisher.Finish(glb)
	if err != nil {
		return lc.fail(err)
	}
	artifact, err := sink.deliver(ctx, finished)
	if err != nil {
		return lc.fail(err)
	}

	return lc.succeed(artifact)
}

// plan validates the request and picks the strategies for its variant.
func (s *jobService) plan(input entity.JobInput) (inputSource, resultSink, int, error) {
	seed := input.SeedOr(s.defaultSeed)

	switch input.Kind() {
	case entity.PayloadRemote:
		if input.ImageURL == "" || input.MaskURL == "" || input.OutputLocation == "" {
			return nil, nil, 0, entity.NewJobError(entity.ErrValidation, entity.MsgRemoteFieldsMissing, nil)
		}
		payload := entity.RemotePayload{
			ImageURL:       input.ImageURL,
			MaskURL:        input.MaskURL,
			OutputLocation: input.OutputLocation,
			Seed:           seed,
		}
		return remoteSource{payload: payload, client: s.remote},
			remoteSink{url: payload.OutputLocation, client: s.remote},
			seed, nil

	default:
		if input.Image == "" || input.Mask == "" {
			return nil, nil, 0, entity.NewJobError(entity.ErrValidation, entity.MsgInlineFieldsMissing, nil)
		}
		payload := entity.InlinePayload{Image: input.Image, Mask: input.Mask, Seed: seed}
		return inlineSource{payload: payload}, inlineSink{}, seed, nil
	}
}

func asInferenceError(err error) error {
	var jobErr *entity.JobError
	if errors.As(err, &jobErr) {
		return err
	}
	return entity.NewJobError(entity.ErrInference, "", err)
}

// RenderOutput maps a result onto the response contract of its variant.
func RenderOutput(result entity.JobResult) any {
	if result.Kind == entity.PayloadRemote {
		if result.Succeeded() {
			return entity.RemoteOutput{Status: "success"}
		}
		msg := errorMessage(result.Err)
		return entity.RemoteOutput{Status: "failed", Error: &msg}
	}

	if result.Succeeded() {
		return entity.InlineOutput{GLBFile: codec.EncodeMesh(result.Artifact)}
	}
	return entity.InlineOutput{Error: errorMessage(result.Err)}
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
