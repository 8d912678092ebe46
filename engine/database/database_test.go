package database_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"registrar/engine/database"
	"registrar/engine/database/databasetest"
)

func TestMemory(t *testing.T) {
	databasetest.Run(t, func(t *testing.T) database.Database {
		return database.NewMemory()
	})
}

func TestFlatFile(t *testing.T) {
	databasetest.Run(t, func(t *testing.T) database.Database {
		db, err := database.NewFlatFile(t.TempDir())
		require.NoError(t, err)
		return db
	})
}

func TestFlatFileSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	db, err := database.NewFlatFile(dir)
	require.NoError(t, err)
	require.NoError(t, db.Scope(database.PendingIdentities).Put(ctx, "addr", []byte("state")))

	reopened, err := database.NewFlatFile(dir)
	require.NoError(t, err)
	v, ok, err := reopened.Scope(database.PendingIdentities).Get(ctx, "addr")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "state", string(v))

	// leftovers of an interrupted write are not entries
	require.NoError(t, os.WriteFile(filepath.Join(dir, database.PendingIdentities, ".tmp-123"), []byte("x"), 0644))
	all, err := reopened.Scope(database.PendingIdentities).All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}
