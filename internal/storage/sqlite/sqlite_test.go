package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openworld/physync/internal/model"
	"github.com/openworld/physync/internal/storage"
	"github.com/openworld/physync/pkg/core"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func TestBackend_SessionDumpsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "physync.db")
	b, err := New(Config{DumpPath: path}, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())

	s := core.Session{ID: core.NewSessionID(), Name: "sqlite", StartTime: time.Now()}
	require.NoError(t, b.StartSession(&s))
	id := core.NewEntityID()
	require.NoError(t, b.AddEntity(&core.EntityInfo{ID: id, Name: "crate", AddedAt: time.Now()}))
	require.NoError(t, b.EndSession())
	require.NoError(t, b.Close())

	assert.Equal(t, path, b.GetExportedFilePath())
	_, err = os.Stat(path)
	require.NoError(t, err)

	// the dump is a standalone database
	disk, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)
	var entity model.Entity
	require.NoError(t, disk.Where("entity_uuid = ?", id.String()).First(&entity).Error)
	assert.Equal(t, "crate", entity.Name)
	sqlDB, _ := disk.DB()
	sqlDB.Close()
}

func TestBackend_DumpLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.db")
	b, err := New(Config{DumpPath: path, DumpInterval: 10 * time.Millisecond}, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestBackend_NoDumpPath(t *testing.T) {
	b, err := New(Config{}, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	assert.NoError(t, b.Dump())
	assert.NoError(t, b.Close())
}
