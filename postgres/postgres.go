// Package postgres implements the engine's relational store contracts over
// pgx. Constructors take a DB interface instead of a concrete pool so the
// stores run against pgxpool in production and pgxmock in tests.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexuslabs/authcore"
)

// DB is the subset of pgxpool.Pool the stores use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pgx pool and verifies connectivity.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// storeErr marks a transport-level failure the engine must surface as a
// 5xx-class outcome rather than a deterministic auth result.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", authcore.ErrDependencyUnavailable, op, err)
}
