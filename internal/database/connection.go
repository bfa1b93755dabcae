package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// A run holds exactly one connection, so the pool never needs more.
const defaultMaxConns = 1

// Session is the connection handle threaded through the ledger and the
// executor. *pgxpool.Conn, *pgxpool.Pool and *pgx.Conn all satisfy it.
type Session interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewPool creates a pgx connection pool for the given database URL.
// It parses the connection string, caps the pool at a single connection,
// and pings the database to verify connectivity and credentials.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	poolCfg.MaxConns = defaultMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return pool, nil
}

// Connect opens a pool and acquires the single session used for a whole run.
// The returned release func returns the session and closes the pool; it is
// safe to defer immediately and to call more than once.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Conn, func(), error) {
	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()

		return nil, nil, fmt.Errorf("%w: acquiring session: %w", ErrConnectionFailed, err)
	}

	released := false
	release := func() {
		if released {
			return
		}

		released = true

		conn.Release()
		pool.Close()
	}

	return conn, release, nil
}
