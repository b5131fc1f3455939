package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("questhub"),
		postgres.WithUsername("questhub"),
		postgres.WithPassword("questhub"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres tests in short mode")
	}

	ctx := context.Background()
	connStr := setupPostgres(ctx, t)

	runStoreSuite(t, func(t *testing.T) Store {
		store, err := NewPostgresStore(connStr, testLogger())
		require.NoError(t, err)
		require.NoError(t, store.Migrate(ctx))

		// every subtest starts from empty tables
		_, err = store.db.ExecContext(ctx, `TRUNCATE quest_completions, step_completions, xp_balances, xp_events`)
		require.NoError(t, err)

		t.Cleanup(func() { store.Close() })
		return store
	})
}
