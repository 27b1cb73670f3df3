// Package cleanup provides OpsRelay's data retention sweep.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/opsrelay/opsrelay/pkg/config"
	"github.com/opsrelay/opsrelay/pkg/storage"
)

// Service periodically purges terminal work_items rows past their
// retention window. All operations are idempotent and safe to run
// from multiple pods.
type Service struct {
	config    config.RetentionConfig
	workItems *storage.WorkItemRepo

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg config.RetentionConfig, workItems *storage.WorkItemRepo) *Service {
	return &Service{config: cfg, workItems: workItems}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started",
		"work_item_retention", s.config.WorkItemRetention,
		"sweep_interval", s.config.SweepInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	count, err := s.workItems.PurgeDone(ctx, s.config.WorkItemRetention)
	if err != nil {
		slog.Error("retention: work item purge failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: purged terminal work items", "count", count)
	}
}
