package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openworld/physync/internal/config"
	"github.com/openworld/physync/internal/model"
)

func newMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := GetSqliteDB("file:" + t.Name() + "?mode=memory")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.PostgresConfig{Host: "h", Port: "1", Username: "u", Password: "p", Database: "d"})
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", dsn)
}

func TestSetup(t *testing.T) {
	db := newMemoryDB(t)

	require.NoError(t, Setup(db, "test", zerolog.Nop()))
	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m), "%T migrated", m)
	}

	var info model.PhysyncInfo
	require.NoError(t, db.First(&info).Error)
	assert.Equal(t, "test", info.InstanceName)
	assert.Equal(t, uint(SchemaVersion), info.SchemaVersion)

	// second setup keeps the single info row
	require.NoError(t, Setup(db, "again", zerolog.Nop()))
	var count int64
	db.Model(&model.PhysyncInfo{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db := newMemoryDB(t)
	require.NoError(t, Setup(db, "test", zerolog.Nop()))

	path := filepath.Join(t.TempDir(), "nested", "dump.db")
	require.NoError(t, DumpMemoryDBToDisk(db, path))
	_, err := os.Stat(path)
	require.NoError(t, err)

	// overwrite works
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}

func TestGetBackupDBPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.db"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c.db"), 0755))

	paths, err := GetBackupDBPaths(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.db")}, paths)

	_, err = GetBackupDBPaths(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestManager_SetupAndDump(t *testing.T) {
	m := NewManager(zerolog.Nop())
	m.DB = newMemoryDB(t)
	m.SqliteFilePath = filepath.Join(t.TempDir(), "m.db")

	require.NoError(t, m.Setup("mgr"))
	require.NoError(t, m.DumpMemoryToDisk())
}
