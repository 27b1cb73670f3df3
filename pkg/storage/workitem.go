package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/opsrelay/opsrelay/pkg/apierrors"
)

// Work item states.
const (
	WorkItemPending    = "pending"
	WorkItemProcessing = "processing"
	WorkItemDone       = "done"
	WorkItemFailed     = "failed"
)

// WorkItem is a claimable unit of enrichment work for one alert (spec
// §4.5's processing queue, backed by an outbox table rather than the
// teacher's in-memory session map since OpsRelay has no comparable
// queue broker wired in).
type WorkItem struct {
	ID          int64
	AlertID     int64
	Status      string
	Attempts    int
	ClaimedAt   *time.Time
	ClaimedBy   *string
	AvailableAt time.Time
	LastError   *string
	CreatedAt   time.Time
}

// WorkItemRepo persists the processing queue.
type WorkItemRepo struct {
	db Querier
}

// NewWorkItemRepo constructs a WorkItemRepo over db.
func NewWorkItemRepo(db Querier) *WorkItemRepo {
	return &WorkItemRepo{db: db}
}

// WithTx returns a copy bound to tx, so enqueuing can happen in the
// same transaction as the alert insert (spec §4.4 step 5).
func (r *WorkItemRepo) WithTx(tx pgx.Tx) *WorkItemRepo {
	return &WorkItemRepo{db: tx}
}

// Enqueue creates a pending work item for alertID.
func (r *WorkItemRepo) Enqueue(ctx context.Context, alertID int64) (*WorkItem, error) {
	w := &WorkItem{AlertID: alertID, Status: WorkItemPending}
	row := r.db.QueryRow(ctx, `
		INSERT INTO work_items (alert_id) VALUES ($1)
		RETURNING id, status, attempts, claimed_at, claimed_by, available_at, last_error, created_at`,
		alertID)
	if err := row.Scan(&w.ID, &w.Status, &w.Attempts, &w.ClaimedAt, &w.ClaimedBy, &w.AvailableAt, &w.LastError, &w.CreatedAt); err != nil {
		return nil, err
	}
	return w, nil
}

// ClaimNext atomically claims the oldest available pending work item
// for workerID, using FOR UPDATE SKIP LOCKED so concurrent Processor
// workers never contend for the same row (spec §4.5 concurrency note).
// Returns apierrors.ErrNotFound if nothing is claimable right now.
func (r *WorkItemRepo) ClaimNext(ctx context.Context, workerID string) (*WorkItem, error) {
	w := &WorkItem{}
	row := r.db.QueryRow(ctx, `
		UPDATE work_items SET
			status = 'processing', claimed_at = now(), claimed_by = $1, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM work_items
			WHERE status = 'pending' AND available_at <= now()
			ORDER BY available_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, alert_id, status, attempts, claimed_at, claimed_by, available_at, last_error, created_at`,
		workerID)
	err := row.Scan(&w.ID, &w.AlertID, &w.Status, &w.Attempts, &w.ClaimedAt, &w.ClaimedBy, &w.AvailableAt, &w.LastError, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// MarkDone marks a work item complete.
func (r *WorkItemRepo) MarkDone(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE work_items SET status = 'done' WHERE id = $1`, id)
	return err
}

// MarkFailed records a failed attempt. If attempts has reached
// maxAttempts the item is parked as 'failed' terminally; otherwise it
// goes back to 'pending' with an exponential backoff delay of
// 2^attempts seconds (grounded on the Celery retry policy this queue
// replaces).
func (r *WorkItemRepo) MarkFailed(ctx context.Context, id int64, attempts, maxAttempts int, lastErr string) error {
	if attempts >= maxAttempts {
		_, err := r.db.Exec(ctx, `UPDATE work_items SET status = 'failed', last_error = $1 WHERE id = $2`, lastErr, id)
		return err
	}
	backoff := time.Duration(1<<uint(attempts)) * time.Second
	_, err := r.db.Exec(ctx, `
		UPDATE work_items SET status = 'pending', last_error = $1, available_at = now() + $2
		WHERE id = $3`, lastErr, backoff, id)
	return err
}

// CountPending reports the current queue depth, for the worker pool's
// health endpoint.
func (r *WorkItemRepo) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM work_items WHERE status = 'pending'`).Scan(&count)
	return count, err
}

// PurgeDone deletes terminal work items ('done' or 'failed') whose
// creation predates the retention cutoff, keeping the queue table from
// growing without bound now that Alerts themselves are never re-queued.
func (r *WorkItemRepo) PurgeDone(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM work_items
		WHERE status IN ('done', 'failed') AND created_at < now() - $1::interval`,
		olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReclaimStale resets work items stuck in 'processing' past staleAfter
// back to 'pending', for crashed-worker recovery.
func (r *WorkItemRepo) ReclaimStale(ctx context.Context, staleAfter time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE work_items SET status = 'pending', claimed_at = NULL, claimed_by = NULL
		WHERE status = 'processing' AND claimed_at < now() - $1::interval`,
		staleAfter)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
