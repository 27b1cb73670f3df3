package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWorkerPool_StartIsIdempotent(t *testing.T) {
	cfg := testQueueConfig()
	cfg.WorkerCount = 0 // avoid spawning real workers against a nil repo
	p := NewWorkerPool("pod-1", nil, cfg, &fakeProcessor{})

	assert.NoError(t, p.Start(t.Context()))
	assert.True(t, p.started)

	// second call is a no-op, not an error
	assert.NoError(t, p.Start(t.Context()))
	assert.Len(t, p.workers, 0)

	p.Stop()
}
