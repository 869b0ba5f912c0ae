package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Driver names a supported SQL dialect.
type Driver string

const (
	MySQL  Driver = "mysql"
	SQLite Driver = "sqlite"
)

// Config holds database configuration
type Config struct {
	Driver     Driver
	Server     string
	Port       int
	Database   string
	User       string
	Password   string
	SQLitePath string
}

// DB is a connection pool that knows which dialect it speaks.
type DB struct {
	*sql.DB
	Driver Driver
}

// Querier is satisfied by *sql.DB, *sql.Tx and *DB.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Open opens and pings a connection pool for cfg.Driver.
func Open(ctx context.Context, config Config) (*DB, error) {
	var (
		pool *sql.DB
		err  error
	)

	switch config.Driver {
	case MySQL, "":
		// parseTime=true: DATETIME columns scan into time.Time; all
		// timestamps are written and read in UTC.
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
			config.User,
			config.Password,
			config.Server,
			config.Port,
			config.Database,
		)
		config.Driver = MySQL
		pool, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		pool.SetMaxOpenConns(25)
		pool.SetMaxIdleConns(5)
		pool.SetConnMaxLifetime(5 * time.Minute)

	case SQLite:
		dsn := "file:" + config.SQLitePath + "?" + url.Values{
			"_pragma": {"busy_timeout(5000)", "foreign_keys(1)"},
		}.Encode()
		pool, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// One connection serialises every writer.
		pool.SetMaxOpenConns(1)

	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", config.Driver)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: pool, Driver: config.Driver}, nil
}

// ForUpdate returns the row-lock suffix for SELECT statements.
func (d *DB) ForUpdate() string {
	if d.Driver == MySQL {
		return " FOR UPDATE"
	}
	return ""
}

// TxOptions returns the isolation used by write transactions. On InnoDB,
// READ COMMITTED lets a COUNT issued after a row lock see rows committed
// by the transaction that held the lock before us.
func (d *DB) TxOptions() *sql.TxOptions {
	if d.Driver == MySQL {
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return nil
}

// Transaction helpers

// WithTransaction executes a function within a transaction
func (d *DB) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.BeginTx(ctx, d.TxOptions())
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
			return fmt.Errorf("failed to rollback transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Placeholders returns "?, ?, ?" for n arguments.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',', ' ')
		}
		b = append(b, '?')
	}
	return string(b)
}
