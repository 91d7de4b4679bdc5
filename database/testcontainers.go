package database

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type nopLogger struct{}

func (*nopLogger) Printf(_ string, _ ...any) {}

var _ tclog.Logger = (*nopLogger)(nil)

var (
	dbName = "testdb"
	dbUser = "testuser"
	dbPass = "testpass"
)

// StartTestContainer starts a Postgres container and returns its connection
// string together with a termination function
func StartTestContainer(t *testing.T) (string, func()) {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPass),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(&nopLogger{}),
	)
	require.NoError(t, err)

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	terminate := func() {
		if err := tc.TerminateContainer(postgresContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return connStr, terminate
}

// SetupTestDB creates a Postgres container, runs migrations and returns a
// connection pool ready for use in tests
func SetupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	connStr, terminate := StartTestContainer(t)

	migrator, err := NewFromConnectionString(connStr)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())

	pool, err := pgxpool.New(context.Background(), connStr)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		terminate()
	}
	return pool, cleanup
}
