package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *DB {
	t.Helper()
	conn, err := Open(context.Background(), Config{
		Driver:     SQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.Migrate(context.Background()))
	return conn
}

func TestTimestampScan(t *testing.T) {
	ref := time.Date(2026, 3, 14, 18, 30, 5, 0, time.UTC)

	tests := []struct {
		name  string
		in    interface{}
		valid bool
	}{
		{"nil", nil, false},
		{"time", ref.In(time.FixedZone("ICT", 7*3600)), true},
		{"sqlite text", "2026-03-14 18:30:05+00:00", true},
		{"rfc3339 bytes", []byte("2026-03-14T18:30:05Z"), true},
		{"plain datetime", "2026-03-14 18:30:05", true},
		{"unix seconds", ref.Unix(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, ts.Scan(tt.in))
			assert.Equal(t, tt.valid, ts.Valid)
			if tt.valid {
				assert.True(t, ts.Time.Equal(ref), "got %s", ts.Time)
				assert.Equal(t, time.UTC, ts.Time.Location())
			}
		})
	}

	var ts Timestamp
	assert.Error(t, ts.Scan("yesterday"))
	assert.Error(t, ts.Scan(3.14))
}

func TestDialectHelpers(t *testing.T) {
	mysql := &DB{Driver: MySQL}
	lite := &DB{Driver: SQLite}

	assert.Equal(t, " FOR UPDATE", mysql.ForUpdate())
	assert.Equal(t, "", lite.ForUpdate())
	assert.NotNil(t, mysql.TxOptions())
	assert.Nil(t, lite.TxOptions())
	assert.Equal(t, "?, ?, ?", Placeholders(3))
	assert.Equal(t, "", Placeholders(0))
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	conn := openSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := conn.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (name, start_at, end_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			"Rolled back", now, now, now, now)
		require.NoError(t, err)
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n))
	assert.Zero(t, n)
}

func TestTimestampRoundTripThroughSQLite(t *testing.T) {
	conn := openSQLite(t)
	ctx := context.Background()
	start := time.Date(2026, 7, 1, 19, 0, 0, 0, time.UTC)

	_, err := conn.ExecContext(ctx,
		`INSERT INTO events (name, start_at, end_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		"Concert", start, start.Add(time.Hour), start, start)
	require.NoError(t, err)

	var got Timestamp
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT start_at FROM events`).Scan(&got))
	assert.True(t, got.Time.Equal(start))
}
