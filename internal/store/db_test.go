package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: Postgres}
	lite := &DB{Dialect: SQLite}

	q := `UPDATE members SET name = ? WHERE id = ? AND version = ?`
	assert.Equal(t, `UPDATE members SET name = $1 WHERE id = $2 AND version = $3`, pg.Rebind(q))
	assert.Equal(t, q, lite.Rebind(q))
}

func TestOpenSQLiteMigratesOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "members.db")

	db, err := Open(ctx, "sqlite", path)
	require.NoError(t, err)
	assert.True(t, db.Healthy(ctx))
	require.NoError(t, db.Close())

	// Reopening must not re-run the recorded migration.
	db, err = Open(ctx, "sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.Client.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)

	for _, table := range []string{"members", "attendance"} {
		var name string
		err := db.Client.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "whatever")
	require.ErrorContains(t, err, "unsupported")
}

func TestNilHandlesAreSafe(t *testing.T) {
	var db *DB
	var r *Redis
	assert.False(t, db.Healthy(context.Background()))
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, db.Close())
	assert.NoError(t, r.Close())
}
