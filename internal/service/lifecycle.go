package service

import (
	"fmt"
	"time"

	"github.com/ds124wfegd/sam3d-worker/internal/entity"
	"github.com/sirupsen/logrus"
)

// allowed forward moves; any non-terminal state may also move to FAILED
var transitions = map[entity.JobState]entity.JobState{
	entity.StateReceived:   entity.StateValidating,
	entity.StateValidating: entity.StatePreparing,
	entity.StatePreparing:  entity.StateInferring,
	entity.StateInferring:  entity.StateFinalizing,
	entity.StateFinalizing: entity.StateSucceeded,
}

// lifecycle tracks one job through its states.
type lifecycle struct {
	kind    entity.PayloadKind
	state   entity.JobState
	history []entity.JobState
	started time.Time
	log     *logrus.Entry
}

func newLifecycle(log *logrus.Entry, kind entity.PayloadKind) *lifecycle {
	return &lifecycle{
		kind:    kind,
		state:   entity.StateReceived,
		history: []entity.JobState{entity.StateReceived},
		started: time.Now(),
		log:     log,
	}
}

func (l *lifecycle) to(next entity.JobState) error {
	if l.state.Terminal() {
		return fmt.Errorf("%w: %s is terminal", entity.ErrIllegalTransition, l.state)
	}
	if next != entity.StateFailed && transitions[l.state] != next {
		return fmt.Errorf("%w: %s -> %s", entity.ErrIllegalTransition, l.state, next)
	}
	l.log.WithFields(logrus.Fields{"from": l.state, "to": next}).Debug("job state changed")
	l.state = next
	l.history = append(l.history, next)
	return nil
}

// advance is for the orchestrator's fixed path, where an illegal move is a bug.
func (l *lifecycle) advance(next entity.JobState) {
	if err := l.to(next); err != nil {
		panic(err)
	}
}

func (l *lifecycle) fail(err error) entity.JobResult {
	failedIn := l.state
	if !l.state.Terminal() {
		_ = l.to(entity.StateFailed)
	}
	l.log.WithFields(logrus.Fields{
		"state":    failedIn,
		"kind":     entity.KindOf(err),
		"duration": time.Since(l.started),
	}).WithError(err).Error("job failed")

	return entity.JobResult{Kind: l.kind, State: entity.StateFailed, Err: err}
}

func (l *lifecycle) succeed(artifact []byte) entity.JobResult {
	l.advance(entity.StateSucceeded)
	l.log.WithField("duration", time.Since(l.started)).Info("job succeeded")
	return entity.JobResult{Kind: l.kind, State: entity.StateSucceeded, Artifact: artifact}
}
