package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// staleClaimThreshold bounds how long a work item may sit 'processing'
// before a crashed worker's claim is considered abandoned and the item
// is returned to the pending pool.
const staleClaimThreshold = 10 * time.Minute

const reclaimInterval = 1 * time.Minute

// reclaimState tracks stale-claim reclaim metrics (thread-safe).
type reclaimState struct {
	mu             sync.Mutex
	lastReclaim    time.Time
	itemsReclaimed int
}

// runReclaimLoop periodically scans for work items orphaned by a
// crashed worker. All pods run this independently; ReclaimStale is
// idempotent so concurrent reclaim passes are harmless.
func (p *WorkerPool) runReclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			n, err := p.workItems.ReclaimStale(ctx, staleClaimThreshold)
			if err != nil {
				slog.Error("stale work item reclaim failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Warn("reclaimed stale work items", "count", n)
			}
			p.reclaim.mu.Lock()
			p.reclaim.lastReclaim = time.Now()
			p.reclaim.itemsReclaimed += int(n)
			p.reclaim.mu.Unlock()
		}
	}
}
