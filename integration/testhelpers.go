//go:build integration

package integration

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aqasim81/migration-runner/internal/database"
)

const (
	postgresImage = "postgres:16-alpine"
	testDB        = "migrate_test"
	testUser      = "migrate"
	testPassword  = "migrate"
)

// SetupPostgresDSN starts a PostgreSQL 16 container and returns a superuser
// connection string for it. The container is terminated when the test completes.
func SetupPostgresDSN(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDB,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return "postgres://" + testUser + ":" + testPassword + "@" + host + ":" + port.Port() + "/" + testDB + "?sslmode=disable"
}

// SetupPostgres starts a container and returns a superuser pool for fixtures.
func SetupPostgres(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()

	dsn := SetupPostgresDSN(t)

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)

	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(context.Background()))

	return pool, dsn
}

// Session acquires the single session a run uses, released at test end.
func Session(t *testing.T, dsn string) *pgxpool.Conn {
	t.Helper()

	conn, release, err := database.Connect(context.Background(), dsn)
	require.NoError(t, err)

	t.Cleanup(release)

	return conn
}

// CreateRestrictedRole creates a login role without CREATE on the database
// and returns a connection string for it. The role may create objects in
// public and in each of the given schemas, which are created by the superuser.
func CreateRestrictedRole(t *testing.T, admin *pgxpool.Pool, dsn, role string, schemas ...string) string {
	t.Helper()

	ctx := context.Background()
	ident := pgx.Identifier{role}.Sanitize()

	_, err := admin.Exec(ctx, "CREATE ROLE "+ident+" LOGIN PASSWORD 'restricted'")
	require.NoError(t, err)

	_, err = admin.Exec(ctx, "REVOKE CREATE ON DATABASE "+testDB+" FROM PUBLIC")
	require.NoError(t, err)

	_, err = admin.Exec(ctx, "GRANT USAGE, CREATE ON SCHEMA public TO "+ident)
	require.NoError(t, err)

	for _, s := range schemas {
		schema := pgx.Identifier{s}.Sanitize()

		_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
		require.NoError(t, err)

		_, err = admin.Exec(ctx, "GRANT USAGE, CREATE ON SCHEMA "+schema+" TO "+ident)
		require.NoError(t, err)
	}

	u, err := url.Parse(dsn)
	require.NoError(t, err)

	u.User = url.UserPassword(role, "restricted")

	return u.String()
}

// WriteMigrations writes files into a fresh directory and returns its path.
func WriteMigrations(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()

	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	return dir
}
