// Package store persists reports, test cases and evidence references.
//
// It runs on database/sql against either PostgreSQL (pgx, through a
// pgxpool) or SQLite (modernc.org/sqlite, no cgo). Queries are written
// once with "?" placeholders and rebound to "$n" for PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/assurelog/internal/config"
	"github.com/JonMunkholm/assurelog/internal/core"
)

// Dialect selects SQL differences between the two engines.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// lower returns the SQL expression folding column to lower case. Both
// engines fold the full Unicode range, matching strings.ToLower.
func (d Dialect) lower(column string) string {
	if d == SQLite {
		return foldFunc + "(" + column + ")"
	}
	return "LOWER(" + column + ")"
}

// rebind rewrites "?" placeholders as "$1", "$2", ... for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements core.Repository on top of a querier.
type queries struct {
	db      querier
	dialect Dialect
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := q.db.ExecContext(ctx, q.dialect.rebind(query), args...)
	return res, translateError(err)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := q.db.QueryContext(ctx, q.dialect.rebind(query), args...)
	return rows, translateError(err)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.dialect.rebind(query), args...)
}

// DB is a core.Store backed by a database/sql handle.
type DB struct {
	*queries
	sql  *sql.DB
	pool *pgxpool.Pool
}

var _ core.Store = (*DB)(nil)

// Open connects to the database named by cfg.URL: postgres:// URLs use a
// pgx pool, sqlite: and file: URLs a local SQLite file.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	switch cfg.Driver() {
	case "pgx":
		return OpenPostgres(ctx, cfg)
	case "sqlite":
		return OpenSQLite(ctx, strings.TrimPrefix(strings.TrimPrefix(cfg.URL, "sqlite:"), "file:"))
	default:
		return nil, fmt.Errorf("unsupported database url scheme")
	}
}

// OpenPostgres creates a pgx pool with the configured limits and wraps it
// in database/sql.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	poolConfig.MinConns = int32(cfg.MinConns)
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	return &DB{
		queries: &queries{db: sqlDB, dialect: Postgres},
		sql:     sqlDB,
		pool:    pool,
	}, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file with
// foreign keys enforced. SQLite allows one writer, so the handle is
// limited to one connection.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &DB{
		queries: &queries{db: sqlDB, dialect: SQLite},
		sql:     sqlDB,
	}, nil
}

// Dialect reports which engine the handle talks to.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// Close releases the handle and, for PostgreSQL, the pool.
func (d *DB) Close() error {
	err := d.sql.Close()
	if d.pool != nil {
		d.pool.Close()
	}
	return err
}

// InTx runs fn inside one transaction. The repository passed to fn must
// be the only one used until fn returns.
func (d *DB) InTx(ctx context.Context, fn func(core.Repository) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", translateError(err))
	}
	defer tx.Rollback()

	if err := fn(&queries{db: tx, dialect: d.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", translateError(err))
	}
	return nil
}

// PostgreSQL error codes the store gives a name to.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgDeadlockDetected    = "40P01"
)

// translateError prefixes PostgreSQL errors with a stable description so
// core.MapError can classify them; other errors pass through.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("duplicate key (%s): %w", pgErr.ConstraintName, err)
	case pgForeignKeyViolation:
		return fmt.Errorf("foreign key violation (%s): %w", pgErr.ConstraintName, err)
	case pgDeadlockDetected:
		return fmt.Errorf("deadlock: %w", err)
	default:
		return err
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return err
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}
