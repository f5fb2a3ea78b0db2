package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewAppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.db")

	db, err := New(path, zap.NewNop())
	require.NoError(t, err)

	version, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(sqliteMigrations), version)

	_, err = db.Exec(`INSERT INTO session_events (session_id, event_data, ingested_at) VALUES ('s1', 'x', 1)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// reopening must not re-run migrations or lose rows
	db, err = New(path, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	applied, err := db.migrate()
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM session_events`).Scan(&count))
	assert.Equal(t, 1, count)

	var mode string
	require.NoError(t, db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)
}
