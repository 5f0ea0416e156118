package service

import (
	"context"
	"sync"
	"time"

	"github.com/vocdoni/bonsai-local/engine"
	"github.com/vocdoni/bonsai-local/jobs"
	"github.com/vocdoni/bonsai-local/log"
)

// StatsMonitorInterval is the interval at which job statistics are logged.
// This can be overridden before starting the service.
var StatsMonitorInterval = 60 * time.Second

// EngineService runs the execution engine and logs job statistics.
type EngineService struct {
	Engine    *engine.Engine
	sessions  *jobs.Registry
	snarks    *jobs.Registry
	cancel    context.CancelFunc
	monitorWG sync.WaitGroup
}

// NewEngine wraps an engine working on the given registries.
func NewEngine(e *engine.Engine, sessions, snarks *jobs.Registry) *EngineService {
	return &EngineService{Engine: e, sessions: sessions, snarks: snarks}
}

// Start launches the engine and the stats monitor.
func (es *EngineService) Start(ctx context.Context) error {
	ctx, es.cancel = context.WithCancel(ctx)
	es.Engine.Start(ctx)
	es.startStatsMonitor(ctx, StatsMonitorInterval)
	return nil
}

// Stop stops dispatching and waits for running jobs.
func (es *EngineService) Stop() {
	if es.cancel != nil {
		es.cancel()
	}
	es.monitorWG.Wait()
	es.Engine.Stop()
}

func (es *EngineService) startStatsMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	es.monitorWG.Add(1)
	go func() {
		defer es.monitorWG.Done()
		defer ticker.Stop()
		log.Infow("job stats monitor started", "interval", interval.String())
		for {
			select {
			case <-ctx.Done():
				log.Infow("job stats monitor stopped")
				return
			case <-ticker.C:
				es.logStats()
			}
		}
	}()
}

func (es *EngineService) logStats() {
	for _, reg := range []*jobs.Registry{es.sessions, es.snarks} {
		counts := reg.Len()
		log.Infow("job stats",
			"kind", string(reg.Kind()),
			"queued", counts[jobs.Queued],
			"running", counts[jobs.Running],
			"succeeded", counts[jobs.Succeeded],
			"failed", counts[jobs.Failed])
	}
}
