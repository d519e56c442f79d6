// Package model is the boundary to the external 3D reconstruction pipeline.
package model

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/sirupsen/logrus"
)

// MeshKey is the output entry holding the GLB mesh.
const MeshKey = "glb"

// Output maps pipeline output names to serialized artifacts.
type Output map[string][]byte

type Reconstructor interface {
	Reconstruct(ctx context.Context, pair entity.AlignedPair, seed int) (Output, error)
}

// Loader builds a ready Reconstructor. It is called until it succeeds once.
type Loader func(ctx context.Context) (Reconstructor, error)

// Provider lazily initializes the process-wide Reconstructor. The first
// successful caller wins; a failed initialization leaves the provider empty so
// the next job retries.
type Provider struct {
	mu     sync.Mutex
	loader Loader
	model  Reconstructor
}

func NewProvider(loader Loader) *Provider {
	return &Provider{loader: loader}
}

func (p *Provider) Get(ctx context.Context) (Reconstructor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model != nil {
		return p.model, nil
	}

	logrus.Info("Initializing SAM 3D pipeline...")
	start := time.Now()

	m, err := p.loader(ctx)
	if err != nil {
		var jobErr *entity.JobError
		if errors.As(err, &jobErr) && jobErr.Kind == entity.ErrModelInit {
			return nil, err
		}
		return nil, entity.NewJobError(entity.ErrModelInit, "", err)
	}

	p.model = m
	logrus.WithField("duration", time.Since(start)).Info("SAM 3D pipeline loaded")
	return m, nil
}

func (p *Provider) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model != nil
}
