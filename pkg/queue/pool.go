package queue

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/opsrelay/opsrelay/pkg/config"
	"github.com/opsrelay/opsrelay/pkg/storage"
)

// WorkerPool manages the Processor's pool of workers plus the
// background stale-claim reclaimer.
type WorkerPool struct {
	podID     string
	workItems *storage.WorkItemRepo
	config    config.QueueConfig
	processor ItemProcessor
	workers   []*Worker
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	started bool

	reclaim reclaimState
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(podID string, workItems *storage.WorkItemRepo, cfg config.QueueConfig, processor ItemProcessor) *WorkerPool {
	return &WorkerPool{
		podID:     podID,
		workItems: workItems,
		config:    cfg,
		processor: processor,
		workers:   make([]*Worker, 0, cfg.WorkerCount),
		stopCh:    make(chan struct{}),
	}
}

// Start spawns worker goroutines and the stale-claim reclaim loop. Safe
// to call multiple times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	slog.Info("starting worker pool", "pod_id", p.podID, "worker_count", p.config.WorkerCount)

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := p.podID + "-worker-" + strconv.Itoa(i)
		worker := NewWorker(workerID, p.podID, p.workItems, p.config, p.processor)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runReclaimLoop(ctx)
	}()

	slog.Info("worker pool started")
	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// Workers finish their current item before exiting.
func (p *WorkerPool) Stop() {
	slog.Info("stopping worker pool gracefully")

	for _, worker := range p.workers {
		worker.Stop()
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("worker pool stopped gracefully")
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health(ctx context.Context) *PoolHealth {
	queueDepth, err := p.workItems.CountPending(ctx)
	if err != nil {
		slog.Error("failed to query queue depth for health check", "pod_id", p.podID, "error", err)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	p.reclaim.mu.Lock()
	lastReclaim := p.reclaim.lastReclaim
	itemsReclaimed := p.reclaim.itemsReclaimed
	p.reclaim.mu.Unlock()

	return &PoolHealth{
		IsHealthy:      len(p.workers) > 0 && err == nil,
		PodID:          p.podID,
		ActiveWorkers:  activeWorkers,
		TotalWorkers:   len(p.workers),
		QueueDepth:     queueDepth,
		WorkerStats:    workerStats,
		LastReclaim:    lastReclaim,
		ItemsReclaimed: itemsReclaimed,
	}
}
