package postgres

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openworld/physync/internal/config"
	"github.com/openworld/physync/internal/model"
	"github.com/openworld/physync/internal/storage"
	"github.com/openworld/physync/pkg/core"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func TestNew(t *testing.T) {
	b := New(Dependencies{})
	require.NotNil(t, b)
	assert.NoError(t, b.Close(), "close before init")
}

// Init against an injected sqlite connection exercises migration and the
// embedded writer without a running Postgres.
func TestInitClose_InjectedDB(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	b := New(Dependencies{DB: db, DBLogger: zerolog.Nop()})
	require.NoError(t, b.Init())
	assert.True(t, db.Migrator().HasTable(&model.EntityEdit{}))

	s := core.Session{ID: core.NewSessionID(), Name: "pg", StartTime: time.Now()}
	require.NoError(t, b.StartSession(&s))
	require.NoError(t, b.RecordSyncStats(&core.SyncStats{Time: time.Now(), Frame: 3}))
	require.NoError(t, b.EndSession())

	var count int64
	db.Model(&model.SyncStats{}).Count(&count)
	assert.Equal(t, int64(1), count)

	require.NoError(t, b.Close())
}

func TestInit_Unreachable(t *testing.T) {
	b := New(Dependencies{
		Config:   config.PostgresConfig{Host: "127.0.0.1", Port: "1", Username: "x", Password: "x", Database: "x"},
		DBLogger: zerolog.Nop(),
	})
	assert.Error(t, b.Init())
}
