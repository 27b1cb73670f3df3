// Package queue implements the Processor: a pool of workers that claim
// pending work items, run each ingested alert through classification,
// entity extraction, and incident grouping, and retry transient
// failures with exponential backoff (spec §4.5).
package queue

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for queue operations.
var (
	// ErrNoItemsAvailable indicates no pending work items are in the queue.
	ErrNoItemsAvailable = errors.New("no work items available")
)

// ItemProcessor processes a single claimed work item end to end: load,
// classify, extract entities, group, and recompute the incident
// embedding. A returned error is treated as transient and retried with
// backoff up to the configured attempt limit.
type ItemProcessor interface {
	Process(ctx context.Context, alertID int64) error
}

// PoolHealth reports the health of the entire worker pool.
type PoolHealth struct {
	IsHealthy     bool           `json:"is_healthy"`
	PodID         string         `json:"pod_id"`
	ActiveWorkers int            `json:"active_workers"`
	TotalWorkers  int            `json:"total_workers"`
	QueueDepth    int            `json:"queue_depth"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
	LastReclaim   time.Time      `json:"last_reclaim"`
	ItemsReclaimed int           `json:"items_reclaimed"`
}

// WorkerHealth reports the health of a single worker.
type WorkerHealth struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"` // "idle" or "working"
	CurrentAlertID   int64     `json:"current_alert_id,omitempty"`
	ItemsProcessed   int       `json:"items_processed"`
	LastActivity     time.Time `json:"last_activity"`
}
