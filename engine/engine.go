// Package engine drains the job registries and runs every job as its own
// goroutine, bounded by a concurrency cap per job kind. The engine is the
// only caller of the registries' transition methods.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vocdoni/bonsai-local/jobs"
	"github.com/vocdoni/bonsai-local/log"
	"github.com/vocdoni/bonsai-local/metrics"
	"github.com/vocdoni/bonsai-local/prover"
	"github.com/vocdoni/bonsai-local/snark"
	"github.com/vocdoni/bonsai-local/types"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the session cap used when none is configured.
const DefaultConcurrency = 2

// ArtifactStore is the part of the artifact store used by job units.
type ArtifactStore interface {
	Get(digest types.Digest) ([]byte, error)
	Put(data []byte) (types.Digest, error)
}

// Config holds the engine policy.
type Config struct {
	// Sessions is the maximum number of proving sessions running at once.
	Sessions int
	// Snarks is the maximum number of SNARK conversions running at once.
	// Zero makes conversions share the session cap.
	Snarks int
}

// unit computes the result artifact of a running job.
type unit func(ctx context.Context, job jobs.Job) (types.Digest, error)

// Engine executes queued sessions and SNARK conversions.
type Engine struct {
	store     ArtifactStore
	sessions  *jobs.Registry
	snarks    *jobs.Registry
	prover    prover.Prover
	converter snark.Converter
	metrics   *metrics.Collector

	sessionSem *semaphore.Weighted
	snarkSem   *semaphore.Weighted

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	dispatchers sync.WaitGroup
	units       sync.WaitGroup
	stopOnce    sync.Once
}

// New creates an engine. The metrics collector may be nil.
func New(store ArtifactStore, sessions, snarks *jobs.Registry, p prover.Prover,
	conv snark.Converter, m *metrics.Collector, conf Config,
) *Engine {
	if conf.Sessions <= 0 {
		conf.Sessions = DefaultConcurrency
	}
	e := &Engine{
		store:      store,
		sessions:   sessions,
		snarks:     snarks,
		prover:     p,
		converter:  conv,
		metrics:    m,
		sessionSem: semaphore.NewWeighted(int64(conf.Sessions)),
	}
	if conf.Snarks > 0 {
		e.snarkSem = semaphore.NewWeighted(int64(conf.Snarks))
	} else {
		e.snarkSem = e.sessionSem
	}
	return e
}

// Start launches one dispatcher per job kind. Jobs keep running after ctx
// is cancelled; use Stop to wait for them.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()
	log.Infow("starting execution engine")
	e.dispatchers.Add(2)
	go e.dispatch(e.sessions, e.sessionSem, e.runSession)
	go e.dispatch(e.snarks, e.snarkSem, e.runSnark)
}

// Stop stops dispatching new jobs and waits for the running ones to reach
// a terminal state. Queued jobs stay queued. Stop on an engine that was
// never started does nothing.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	e.stopOnce.Do(func() {
		cancel()
		e.dispatchers.Wait()
		e.units.Wait()
		log.Infow("execution engine stopped")
	})
}

func (e *Engine) dispatch(reg *jobs.Registry, sem *semaphore.Weighted, run unit) {
	defer e.dispatchers.Done()
	for {
		var id string
		select {
		case <-e.ctx.Done():
			return
		case id = <-reg.Queue():
		}
		// the job stays queued until a slot frees up; the slot is taken after
		// dequeuing since both kinds may share one semaphore
		if err := sem.Acquire(e.ctx, 1); err != nil {
			log.Warnw("engine stopped with a dequeued job", "kind", string(reg.Kind()), "id", id)
			return
		}
		e.units.Add(1)
		go func() {
			defer e.units.Done()
			defer sem.Release(1)
			e.execute(reg, id, run)
		}()
	}
}

// execute drives one job through Running to a terminal state. A rejected
// transition means the engine lost track of a job, which is unrecoverable.
func (e *Engine) execute(reg *jobs.Registry, id string, run unit) {
	kind := string(reg.Kind())
	job, err := reg.Start(id)
	if err != nil {
		log.Fatalf("cannot start %s job %s: %v", kind, id, err)
	}
	e.metrics.JobStarted(kind)
	log.Debugw("job running", "kind", kind, "id", id)

	// units are not cancellable once started
	result, err := run(context.WithoutCancel(e.ctx), job)
	if err != nil {
		if errors.Is(err, prover.ErrProverFailure) || errors.Is(err, snark.ErrConversionFailure) {
			log.Warnw("job failed", "kind", kind, "id", id, "error", err.Error())
		} else {
			log.Errorw(err, fmt.Sprintf("%s job %s failed", kind, id))
		}
		if job, err = reg.Fail(id, err.Error()); err != nil {
			log.Fatalf("cannot fail %s job %s: %v", kind, id, err)
		}
	} else {
		if job, err = reg.Succeed(id, result); err != nil {
			log.Fatalf("cannot complete %s job %s: %v", kind, id, err)
		}
		log.Debugw("job succeeded", "kind", kind, "id", id, "result", result.String())
	}
	e.metrics.JobFinished(kind, job.State.String(), job.Elapsed())
}

// runSession proves the job's image and input and stores the receipt. The
// receipt is in the store before the job can be marked succeeded.
func (e *Engine) runSession(ctx context.Context, job jobs.Job) (types.Digest, error) {
	image, err := e.store.Get(job.Image)
	if err != nil {
		return "", fmt.Errorf("load image %s: %w", job.Image, err)
	}
	input, err := e.store.Get(job.Input)
	if err != nil {
		return "", fmt.Errorf("load input %s: %w", job.Input, err)
	}
	receipt, err := e.prover.Prove(ctx, image, input)
	if err != nil {
		return "", err
	}
	encoded, err := receipt.Encode()
	if err != nil {
		return "", fmt.Errorf("encode receipt: %w", err)
	}
	return e.store.Put(encoded)
}

// runSnark converts the job's receipt and stores the SNARK receipt.
func (e *Engine) runSnark(ctx context.Context, job jobs.Job) (types.Digest, error) {
	receipt, err := e.store.Get(job.Receipt)
	if err != nil {
		return "", fmt.Errorf("load receipt %s: %w", job.Receipt, err)
	}
	out, err := e.converter.Convert(ctx, receipt)
	if err != nil {
		return "", err
	}
	return e.store.Put(out)
}
