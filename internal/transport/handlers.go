package transport

import (
	"github.com/ds124wfegd/sam3d-worker/internal/service"
)

type JobHandler struct {
	service service.QueueService
	ready   func() bool
}

// ready reports whether the reconstruction model is loaded; nil means unknown.
func NewJobHandler(service service.QueueService, ready func() bool) *JobHandler {
	return &JobHandler{service: service, ready: ready}
}
