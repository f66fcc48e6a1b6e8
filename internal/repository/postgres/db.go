// Package postgres provides the PostgreSQL quota and file metadata repositories.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-gateway/internal/config"
)

const (
	connectTimeout = 10 * time.Second

	// SlowQueryThreshold is the duration above which a statement is logged at warn level.
	SlowQueryThreshold = 250 * time.Millisecond
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so repositories and
// migrations run unchanged inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (pgx.Tx)(nil)
)

// DB holds the pool shared by the quota and file repositories.
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewDB connects to PostgreSQL and verifies the connection.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	poolConfig, err := poolConfigFrom(cfg, logger)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Str("database", poolConfig.ConnConfig.Database).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("metadata store connected")

	return &DB{Pool: pool, logger: logger}, nil
}

// poolConfigFrom translates the gateway's database settings into a pool config.
// A URL may carry its own pool_max_conns; explicit settings override it.
func poolConfigFrom(cfg config.DatabaseConfig, logger zerolog.Logger) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		pc.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pc.MinConns = min(int32(cfg.MaxIdleConns), pc.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	if pc.ConnConfig.ConnectTimeout == 0 {
		pc.ConnConfig.ConnectTimeout = connectTimeout
	}

	pc.ConnConfig.Tracer = newStatementLogger(logger)
	return pc, nil
}

// Close releases every pooled connection.
func (db *DB) Close() error {
	db.Pool.Close()
	db.logger.Info().Msg("metadata store closed")
	return nil
}

// Ping checks that a connection can be acquired.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Health fails until the quota table exists.
func (db *DB) Health(ctx context.Context) error {
	var ready bool
	err := db.Pool.QueryRow(ctx, `SELECT to_regclass('user_storage_quotas') IS NOT NULL`).Scan(&ready)
	if err != nil {
		return err
	}
	if !ready {
		return errors.New("schema not migrated: run alexander-migrate up")
	}
	return nil
}

// WithTx runs fn in a transaction, committing only when fn returns nil.
func (db *DB) WithTx(ctx context.Context, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	tx, err := db.Pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	return tx.Commit(ctx)
}

// statementLogger logs statements at debug level and slow or failed
// statements at warn level.
type statementLogger struct {
	logger zerolog.Logger
	slow   time.Duration
	now    func() time.Time
}

type statementStartKey struct{}

type statementStart struct {
	sql   string
	nargs int
	at    time.Time
}

func newStatementLogger(logger zerolog.Logger) *statementLogger {
	return &statementLogger{
		logger: logger.With().Str("component", "postgres").Logger(),
		slow:   SlowQueryThreshold,
		now:    time.Now,
	}
}

func (l *statementLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, statementStartKey{}, statementStart{
		sql:   data.SQL,
		nargs: len(data.Args),
		at:    l.now(),
	})
}

func (l *statementLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(statementStartKey{}).(statementStart)
	if !ok {
		return
	}
	elapsed := l.now().Sub(start.at)

	event := l.logger.Debug()
	switch {
	case data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows):
		event = l.logger.Warn().Err(data.Err)
	case elapsed >= l.slow:
		event = l.logger.Warn().Bool("slow", true)
	}

	event.
		Str("sql", start.sql).
		Int("args", start.nargs).
		Dur("duration", elapsed).
		Str("command_tag", data.CommandTag.String()).
		Msg("statement")
}
