package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"comradarr/internal/adapter/repo/postgres"
)

const integrationSchema = `
CREATE TABLE throttle_state (
	connector_id        BIGINT PRIMARY KEY,
	requests_this_minute INT NOT NULL DEFAULT 0,
	requests_today      INT NOT NULL DEFAULT 0,
	minute_window_start TIMESTAMPTZ,
	day_window_start    TIMESTAMPTZ,
	paused_until        TIMESTAMPTZ,
	pause_reason        TEXT,
	last_request_at     TIMESTAMPTZ
);
CREATE TABLE search_registry (
	id                 BIGSERIAL PRIMARY KEY,
	connector_id       BIGINT NOT NULL,
	content_type       TEXT NOT NULL,
	content_id         BIGINT NOT NULL,
	search_type        TEXT NOT NULL,
	state              TEXT NOT NULL DEFAULT 'pending',
	attempt_count      INT NOT NULL DEFAULT 0,
	last_searched      TIMESTAMPTZ,
	next_eligible      TIMESTAMPTZ,
	failure_category   TEXT NOT NULL DEFAULT '',
	season_pack_failed BOOLEAN NOT NULL DEFAULT false,
	backlog_tier       INT NOT NULL DEFAULT 0,
	priority           INT NOT NULL DEFAULT 0,
	first_discovered   TIMESTAMPTZ NOT NULL,
	UNIQUE (connector_id, content_type, content_id)
);
CREATE TABLE request_queue (
	id           BIGSERIAL PRIMARY KEY,
	registry_id  BIGINT NOT NULL REFERENCES search_registry(id) ON DELETE CASCADE,
	connector_id BIGINT NOT NULL,
	priority     INT NOT NULL,
	scheduled_at TIMESTAMPTZ NOT NULL,
	batch_id     TEXT NOT NULL
);
`

// startPostgres spins up a disposable postgres:16 container and returns a
// pool connected to it with the test schema applied.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "comradarr_test"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(90 * time.Second),
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.AutoRemove = true
		},
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, nat.Port("5432/tcp"))
	require.NoError(t, err)

	dsn := "postgres://postgres:postgres@" + host + ":" + port.Port() + "/comradarr_test?sslmode=disable"
	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, integrationSchema)
	require.NoError(t, err)
	return pool
}

func TestIntegration_TryAcquireMinuteSlot_Concurrent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in -short mode")
	}
	pool := startPostgres(t)
	repo := postgres.NewThrottleRepo(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)

	// 20 concurrent callers against a budget of 5: exactly 5 slots.
	const callers, budget = 20, 5
	var acquired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := repo.TryAcquireMinuteSlot(ctx, 1, budget, now)
			require.NoError(t, err)
			if ok {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(budget), acquired.Load())

	state, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, budget, state.RequestsThisMinute)
}

func TestIntegration_ClaimSearching_NoDoubleClaim(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in -short mode")
	}
	pool := startPostgres(t)
	repo := postgres.NewRegistryRepo(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	row, err := repo.GetOrCreate(ctx, 1, "movie", 100, "gap", now)
	require.NoError(t, err)
	require.NoError(t, repo.Enqueue(ctx, row.ID, 1000, now, "batch-int-1"))

	// Two dispatch passes race on the same row; only one may claim it.
	var claims atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.ClaimSearching(ctx, []int64{row.ID}, now)
			require.NoError(t, err)
			claims.Add(int32(len(claimed)))
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), claims.Load())

	// The claim consumed the queue row.
	var queueRows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM request_queue WHERE registry_id = $1`, row.ID).Scan(&queueRows))
	require.Equal(t, 0, queueRows)

	got, err := repo.Get(ctx, row.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.AttemptCount)
}
