// Package postgres wraps a pgx connection pool with logging, metrics, and
// transaction helpers.
package postgres

import (
	"context"
	"time"

	"flowcanvas/internal/config"
	"flowcanvas/pkg/errors"
	"flowcanvas/pkg/logger"
	"flowcanvas/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the shared database handle.
type DB struct {
	pool    *pgxpool.Pool
	config  *config.DatabaseConfig
	logger  logger.Logger
	metrics *metrics.Metrics
}

// TransactionFunc runs inside a transaction; a non-nil error rolls back.
type TransactionFunc func(tx pgx.Tx) error

// New connects to Postgres with retries and returns the handle.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	if cfg == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "database config is required")
	}

	db := &DB{
		config:  cfg,
		logger:  logger.New("postgres"),
		metrics: metrics.GetGlobal(),
	}

	if err := db.connect(context.Background()); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) connect(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(db.config.DSN())
	if err != nil {
		return errors.DatabaseError("invalid database configuration", err)
	}

	poolCfg.MaxConns = int32(db.config.MaxOpenConns)
	poolCfg.MinConns = int32(db.config.MinOpenConns)
	poolCfg.MaxConnLifetime = db.config.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = db.config.ConnMaxIdleTime
	poolCfg.ConnConfig.ConnectTimeout = db.config.ConnectTimeout

	var lastErr error
	for attempt := 0; attempt <= db.config.ConnectRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			db.logger.Warn("Retrying database connection",
				"attempt", attempt,
				"backoff", backoff,
				"error", lastErr,
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return errors.DatabaseError("database connect cancelled", ctx.Err())
			}
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			lastErr = err
			continue
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			lastErr = err
			continue
		}

		db.pool = pool
		db.logger.Info("Connected to database",
			"host", db.config.Host,
			"database", db.config.Database,
			"max_conns", db.config.MaxOpenConns,
		)
		return nil
	}

	return errors.DatabaseError("failed to connect to database", lastErr)
}

// Query runs a query and records timing.
func (db *DB) Query(ctx context.Context, operation, table, sql string, args ...any) (pgx.Rows, error) {
	start := time.Now()
	rows, err := db.pool.Query(ctx, sql, args...)
	db.observe(operation, table, start, err)
	return rows, err
}

// QueryRow runs a single-row query and records timing.
func (db *DB) QueryRow(ctx context.Context, operation, table, sql string, args ...any) pgx.Row {
	start := time.Now()
	row := db.pool.QueryRow(ctx, sql, args...)
	db.observe(operation, table, start, nil)
	return row
}

// Exec runs a statement and records timing.
func (db *DB) Exec(ctx context.Context, operation, table, sql string, args ...any) (pgconn.CommandTag, error) {
	start := time.Now()
	tag, err := db.pool.Exec(ctx, sql, args...)
	db.observe(operation, table, start, err)
	return tag, err
}

func (db *DB) observe(operation, table string, start time.Time, err error) {
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	db.metrics.RecordDBQuery(operation, table, status, duration)

	if duration > db.config.SlowQueryThreshold {
		db.logger.Warn("Slow query",
			"operation", operation,
			"table", table,
			"duration", duration,
		)
	}
}

// RunInTransaction executes fn inside a transaction, rolling back on error
// or panic.
func (db *DB) RunInTransaction(ctx context.Context, fn TransactionFunc) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			db.logger.Error("Transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.DatabaseError("failed to commit transaction", err)
	}
	return nil
}

// Pool exposes the underlying pool for callers that need pgx directly.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Health pings the database within a short deadline.
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.pool.Ping(ctx); err != nil {
		return errors.DatabaseError("database health check failed", err)
	}
	return nil
}

// Close releases the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
		db.logger.Info("Database connection closed")
	}
}
