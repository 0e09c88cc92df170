package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MigratesAndPings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite")

	db, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, Ping(context.Background(), db))

	var mode string
	require.NoError(t, db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
	require.NoError(t, db.Close())

	// reopening an up-to-date database is a no-op migration
	db, err = Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()
	assert.NoError(t, verifySchema(db, zerolog.Nop()))
}

func TestOpen_ForeignKeysEnforced(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fk.sqlite"), zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO matches (map_mode, map_name, status, created_at) VALUES ('Heist', 'Safe Zone', 'pending', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO match_players (match_id, player_id, team, position) VALUES (1, 'ghost', 'team1', 0)`)
	assert.Error(t, err)
}
