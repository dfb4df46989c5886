package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Config holds connection settings.
type Config struct {
	Dialect         Dialect
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns pool settings suited to the dialect.
func DefaultConfig(dialect Dialect, dsn string) Config {
	cfg := Config{
		Dialect:         dialect,
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
	if dialect == DialectSQLite {
		cfg.MaxOpenConns = 8
		cfg.MaxIdleConns = 2
	}
	return cfg
}

// Validate checks the configuration before a connection is attempted.
func (c Config) Validate() error {
	if _, err := ParseDialect(string(c.Dialect)); err != nil {
		return err
	}
	if c.DSN == "" {
		return errors.New("sqlstore: DSN cannot be empty")
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return errors.New("sqlstore: connection limits cannot be negative")
	}
	if c.ConnMaxLifetime < 0 {
		return errors.New("sqlstore: ConnMaxLifetime cannot be negative")
	}
	return nil
}

// ConnectionPool manages database connections with transaction support.
type ConnectionPool struct {
	db      *sql.DB
	dialect Dialect
}

// NewConnectionPool opens and pings the database.
func NewConnectionPool(ctx context.Context, cfg Config) (*ConnectionPool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	db, err := sql.Open(cfg.Dialect.driverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Dialect, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Dialect, err)
	}
	return &ConnectionPool{db: db, dialect: cfg.Dialect}, nil
}

// DB returns the underlying database handle.
func (cp *ConnectionPool) DB() *sql.DB {
	return cp.db
}

// Dialect reports the SQL flavour of the pool.
func (cp *ConnectionPool) Dialect() Dialect {
	return cp.dialect
}

// Close closes the pool.
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Ping tests the database connection.
func (cp *ConnectionPool) Ping(ctx context.Context) error {
	return cp.db.PingContext(ctx)
}

// TransactionFunc runs inside a transaction.
type TransactionFunc func(tx *sql.Tx) error

// WithTransaction commits when fn returns nil and rolls back otherwise,
// including when fn panics.
func (cp *ConnectionPool) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	tx, err := cp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QueryHelper runs queries written with ? placeholders against a pool or a
// transaction, rebinding them for the dialect.
type QueryHelper struct {
	q       queryer
	dialect Dialect
}

// NewQueryHelper creates a helper bound to q.
func NewQueryHelper(q queryer, dialect Dialect) *QueryHelper {
	return &QueryHelper{q: q, dialect: dialect}
}

// QueryRow executes a query that returns a single row.
func (qh *QueryHelper) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return qh.q.QueryRowContext(ctx, qh.dialect.rebind(query), args...)
}

// Query executes a query that returns multiple rows.
func (qh *QueryHelper) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return qh.q.QueryContext(ctx, qh.dialect.rebind(query), args...)
}

// Exec executes a query that doesn't return rows.
func (qh *QueryHelper) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return qh.q.ExecContext(ctx, qh.dialect.rebind(query), args...)
}
