package service

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/codec"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/model"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/processor"
	"github.com/ds124wfegd/sam3d-worker/internal/pkg/remote"
	"github.com/stretchr/testify/require"
)

var fakeGLB = []byte("glTF\x02\x00\x00\x00fake-mesh")

// stubModel запоминает вход последнего вызова
type stubModel struct {
	mu     sync.Mutex
	calls  int
	pair   entity.AlignedPair
	seed   int
	output model.Output
	err    error
	panic  bool
}

func (m *stubModel) Reconstruct(_ context.Context, pair entity.AlignedPair, seed int) (model.Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.pair = pair
	m.seed = seed
	if m.panic {
		panic("pipeline exploded")
	}
	return m.output, m.err
}

func newStubModel() *stubModel {
	return &stubModel{output: model.Output{model.MeshKey: fakeGLB, "gaussian": []byte("ply")}}
}

type passthroughFinisher struct{}

func (passthroughFinisher) Finish(glb []byte) ([]byte, error) {
	return glb, nil
}

func newTestJobService(m *stubModel, rc remote.Client) JobService {
	provider := model.NewProvider(func(context.Context) (model.Reconstructor, error) {
		return m, nil
	})
	if rc == nil {
		rc = remote.NewClient(remote.Options{})
	}
	return NewJobService(provider, processor.NewImageAligner(nil), passthroughFinisher{}, rc, 0)
}

func encodedImage(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	s, err := codec.Encode(img)
	require.NoError(t, err)
	return s
}

// encodedMask: белая левая половина, черная правая
func encodedMask(t *testing.T, w, h int) string {
	t.Helper()
	s, err := codec.Encode(maskImage(w, h))
	require.NoError(t, err)
	return s
}

func maskImage(w, h int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return mask
}
