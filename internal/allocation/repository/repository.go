// Package repository persists the allocation model in PostgreSQL.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both the pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// queries implements Queries over any DBTX.
type queries struct {
	db DBTX
}

// txQueries implements Tx on an open transaction.
type txQueries struct {
	queries
}

// PG is the PostgreSQL implementation of Repository.
type PG struct {
	queries
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// New creates a PostgreSQL-backed repository. lockTimeout bounds how long a
// transaction waits for a row lock before failing with a concurrency error.
func New(pool *pgxpool.Pool, lockTimeout time.Duration) *PG {
	return &PG{
		queries:     queries{db: pool},
		pool:        pool,
		lockTimeout: lockTimeout,
	}
}

var _ Repository = (*PG)(nil)
var _ Tx = (*txQueries)(nil)

// InTx runs fn in a read-committed transaction.
func (r *PG) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapError("begin transaction", err, "")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if r.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, lockTimeoutStatement(r.lockTimeout)); err != nil {
			return mapError("set lock timeout", err, "")
		}
	}

	if err := fn(&txQueries{queries: queries{db: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError("commit transaction", err, "")
	}
	return nil
}

// SET LOCAL does not accept bind parameters.
func lockTimeoutStatement(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)
}
