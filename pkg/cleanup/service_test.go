package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsrelay/opsrelay/pkg/config"
	"github.com/opsrelay/opsrelay/pkg/database"
	"github.com/opsrelay/opsrelay/pkg/storage"
)

// newTestDB starts a throwaway Postgres container, applies the
// embedded migrations, and returns a pool plus a WorkItemRepo over it.
func newTestDB(t *testing.T) (*pgxpool.Pool, *storage.WorkItemRepo) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.Config{
		DSN: connStr, MaxOpenConns: 10, MaxIdleConns: 5,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client.Pool, storage.NewWorkItemRepo(client.Pool)
}

func TestService_PurgesOldTerminalWorkItems(t *testing.T) {
	pool, workItems := newTestDB(t)
	ctx := context.Background()

	var alertID int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO alerts (source, external_id, title, alert_timestamp)
		VALUES ('datadog', 'retention-old', 'old alert', now()) RETURNING id`).Scan(&alertID))

	w, err := workItems.Enqueue(ctx, alertID)
	require.NoError(t, err)
	require.NoError(t, workItems.MarkDone(ctx, w.ID))
	_, err = pool.Exec(ctx, `UPDATE work_items SET created_at = now() - interval '10 days' WHERE id = $1`, w.ID)
	require.NoError(t, err)

	cfg := config.RetentionConfig{WorkItemRetention: 7 * 24 * time.Hour, SweepInterval: time.Hour}
	svc := NewService(cfg, workItems)
	svc.runAll(ctx)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM work_items WHERE id = $1`, w.ID).Scan(&count))
	assert.Equal(t, 0, count, "the old done item should have been purged")
}

func TestService_PreservesRecentWorkItems(t *testing.T) {
	pool, workItems := newTestDB(t)
	ctx := context.Background()

	var alertID int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO alerts (source, external_id, title, alert_timestamp)
		VALUES ('datadog', 'retention-recent', 'recent alert', now()) RETURNING id`).Scan(&alertID))

	w, err := workItems.Enqueue(ctx, alertID)
	require.NoError(t, err)
	require.NoError(t, workItems.MarkDone(ctx, w.ID))

	cfg := config.RetentionConfig{WorkItemRetention: 7 * 24 * time.Hour, SweepInterval: time.Hour}
	svc := NewService(cfg, workItems)
	svc.runAll(ctx)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM work_items WHERE id = $1`, w.ID).Scan(&count))
	assert.Equal(t, 1, count, "a recently-completed item should survive the sweep")
}
