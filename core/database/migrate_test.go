package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrationFilesPerDriver(t *testing.T) {
	for _, driver := range []string{DriverPostgres, DriverSQLite} {
		files := listMigrationFiles(migrationsFS, "migrations/"+driver)
		assert.Equal(t, []string{"0001_users_contexts.up.sql", "0002_user_topics.up.sql"}, files, driver)
	}
}

func TestSelectApplied(t *testing.T) {
	files := []string{"0001_a.up.sql", "0002_b.up.sql", "0003_c.up.sql"}
	assert.Equal(t, []string{"0002_b.up.sql", "0003_c.up.sql"}, selectApplied(files, 1, 3))
	assert.Empty(t, selectApplied(files, 3, 3))
}

func TestConfigDriverName(t *testing.T) {
	assert.Equal(t, DriverPostgres, Config{}.DriverName())
	assert.Equal(t, DriverSQLite, Config{Driver: " SQLite3 "}.DriverName())
}

func TestSQLiteConnectAndMigrate(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "flowbot.db")}
	require.NoError(t, RunMigrations(cfg))
	// second run is a no-op
	require.NoError(t, RunMigrations(cfg))

	db, err := Connect(cfg)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM user_contexts`))
	assert.Zero(t, n)
}
