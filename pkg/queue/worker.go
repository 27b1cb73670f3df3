package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/opsrelay/opsrelay/pkg/apierrors"
	"github.com/opsrelay/opsrelay/pkg/config"
	"github.com/opsrelay/opsrelay/pkg/storage"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes work items.
type Worker struct {
	id        string
	podID     string
	workItems *storage.WorkItemRepo
	config    config.QueueConfig
	processor ItemProcessor
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu             sync.RWMutex
	status         WorkerStatus
	currentAlertID int64
	itemsProcessed int
	lastActivity   time.Time
}

// NewWorker creates a new queue worker.
func NewWorker(id, podID string, workItems *storage.WorkItemRepo, cfg config.QueueConfig, processor ItemProcessor) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		workItems:    workItems,
		config:       cfg,
		processor:    processor,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish. Safe to
// call multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         string(w.status),
		CurrentAlertID: w.currentAlertID,
		ItemsProcessed: w.itemsProcessed,
		LastActivity:   w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoItemsAvailable) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing work item", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims the next pending work item and runs it through
// the Processor, retrying on failure with exponential backoff up to
// config.MaxAttempts (spec §5: 2^attempt seconds, max 3 attempts) and a
// 5-minute overall task timeout.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	item, err := w.workItems.ClaimNext(ctx, w.id)
	if err != nil {
		if errors.Is(err, apierrors.ErrNotFound) {
			return ErrNoItemsAvailable
		}
		return fmt.Errorf("claim work item: %w", err)
	}

	log := slog.With("alert_id", item.AlertID, "worker_id", w.id, "attempt", item.Attempts)
	log.Info("work item claimed")

	w.setStatus(WorkerStatusWorking, item.AlertID)
	defer w.setStatus(WorkerStatusIdle, 0)

	taskCtx, cancel := context.WithTimeout(ctx, w.config.TaskTimeout)
	defer cancel()

	if procErr := w.processor.Process(taskCtx, item.AlertID); procErr != nil {
		log.Error("work item processing failed", "error", procErr)
		if markErr := w.workItems.MarkFailed(context.Background(), item.ID, item.Attempts, w.config.MaxAttempts, procErr.Error()); markErr != nil {
			return fmt.Errorf("mark work item failed: %w", markErr)
		}
		return nil
	}

	if err := w.workItems.MarkDone(context.Background(), item.ID); err != nil {
		return fmt.Errorf("mark work item done: %w", err)
	}

	w.mu.Lock()
	w.itemsProcessed++
	w.mu.Unlock()

	log.Info("work item processed")
	return nil
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, alertID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentAlertID = alertID
	w.lastActivity = time.Now()
}
