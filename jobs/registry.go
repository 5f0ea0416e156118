package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vocdoni/bonsai-local/log"
	"github.com/vocdoni/bonsai-local/types"
)

// DefaultQueueSize is the number of queued jobs a registry accepts before
// rejecting new ones.
const DefaultQueueSize = 1024

var (
	ErrNotFound          = errors.New("job not found")
	ErrNotReady          = errors.New("job result not ready")
	ErrUnknownArtifact   = errors.New("unknown artifact")
	ErrQueueFull         = errors.New("job queue is full")
	ErrIllegalTransition = errors.New("illegal job state transition")
	ErrWrongKind         = errors.New("operation not supported by this job kind")
)

// ArtifactChecker is the part of the artifact store the registry needs to
// validate references.
type ArtifactChecker interface {
	Has(types.Digest) bool
}

// Registry owns every job of one kind. Readers get copies; the only writers
// are Start, Succeed and Fail, which the execution engine calls.
type Registry struct {
	kind      Kind
	artifacts ArtifactChecker
	mu        sync.RWMutex
	jobs      map[string]*Job
	queue     chan string
}

// NewRegistry creates an empty registry. queueSize bounds the number of
// jobs waiting for the engine; zero selects DefaultQueueSize.
func NewRegistry(kind Kind, artifacts ArtifactChecker, queueSize int) *Registry {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Registry{
		kind:      kind,
		artifacts: artifacts,
		jobs:      make(map[string]*Job),
		queue:     make(chan string, queueSize),
	}
}

// Kind returns the job kind handled by the registry.
func (r *Registry) Kind() Kind {
	return r.kind
}

// Queue returns the channel the engine drains. Every id is sent exactly
// once, after the job is registered in the Queued state.
func (r *Registry) Queue() <-chan string {
	return r.queue
}

// CreateSession registers a proving job over an image and an input.
func (r *Registry) CreateSession(image, input types.Digest) (string, error) {
	if r.kind != KindSession {
		return "", ErrWrongKind
	}
	for _, d := range []types.Digest{image, input} {
		if !r.artifacts.Has(d) {
			return "", fmt.Errorf("%w: %s", ErrUnknownArtifact, d)
		}
	}
	return r.create(&Job{Image: image, Input: input})
}

// CreateSnark registers a SNARK conversion of a stored receipt.
func (r *Registry) CreateSnark(receipt types.Digest) (string, error) {
	if r.kind != KindSnark {
		return "", ErrWrongKind
	}
	if !r.artifacts.Has(receipt) {
		return "", fmt.Errorf("%w: %s", ErrUnknownArtifact, receipt)
	}
	return r.create(&Job{Receipt: receipt})
}

func (r *Registry) create(job *Job) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New().String()
	// identifiers are never reused during the process lifetime
	for r.jobs[id] != nil {
		id = uuid.New().String()
	}
	job.ID = id
	job.Kind = r.kind
	job.State = Queued
	job.CreatedAt = time.Now()
	r.jobs[id] = job
	select {
	case r.queue <- id:
	default:
		delete(r.jobs, id)
		return "", ErrQueueFull
	}
	log.Debugw("job queued", "kind", string(r.kind), "id", id)
	return id, nil
}

// Status returns a snapshot of the job.
func (r *Registry) Status(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *job, nil
}

// Result returns the digest produced by a succeeded job. Jobs in any other
// state, failed ones included, return ErrNotReady.
func (r *Registry) Result(id string) (types.Digest, error) {
	job, err := r.Status(id)
	if err != nil {
		return "", err
	}
	if job.State != Succeeded {
		return "", fmt.Errorf("%w: job %s is %s", ErrNotReady, id, job.State)
	}
	return job.Result, nil
}

// Len returns the number of jobs per state.
func (r *Registry) Len() map[State]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[State]int, len(stateNames))
	for _, job := range r.jobs {
		counts[job.State]++
	}
	return counts
}

// Start moves a dequeued job to Running.
func (r *Registry) Start(id string) (Job, error) {
	return r.transition(id, Running, func(j *Job) {
		j.StartedAt = time.Now()
	})
}

// Succeed records the result digest and moves the job to Succeeded. The
// result must already be in the artifact store.
func (r *Registry) Succeed(id string, result types.Digest) (Job, error) {
	return r.transition(id, Succeeded, func(j *Job) {
		j.Result = result
		j.FinishedAt = time.Now()
	})
}

// Fail records msg and moves the job to Failed.
func (r *Registry) Fail(id, msg string) (Job, error) {
	return r.transition(id, Failed, func(j *Job) {
		j.Error = msg
		j.FinishedAt = time.Now()
	})
}

// transition is the single mutation point of the registry.
func (r *Registry) transition(id string, to State, update func(*Job)) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !allowedTransition(job.State, to) {
		return *job, fmt.Errorf("%w: %s job %s from %s to %s",
			ErrIllegalTransition, r.kind, id, job.State, to)
	}
	job.State = to
	update(job)
	log.Debugw("job transition", "kind", string(r.kind), "id", id, "state", to.String())
	return *job, nil
}
