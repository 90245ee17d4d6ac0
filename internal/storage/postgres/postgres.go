// Package postgres implements the storage.Backend interface on PostgreSQL
// with PostGIS, using the shared GORM queue writer.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/openworld/physync/internal/config"
	"github.com/openworld/physync/internal/database"
	gormstorage "github.com/openworld/physync/internal/storage/gorm"
)

// Dependencies holds all dependencies for the Postgres storage backend.
type Dependencies struct {
	// DB is used as-is when set; otherwise Init connects using Config.
	DB       *gorm.DB
	Config   config.PostgresConfig
	Logger   *slog.Logger
	DBLogger zerolog.Logger
}

// Backend embeds the GORM backend and owns connection setup.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
}

// New creates a new Postgres storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// Init connects if needed, runs schema migration and starts the DB writer.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDB(b.deps.Config)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	if err := database.Setup(b.deps.DB, "physync", b.deps.DBLogger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:     b.deps.DB,
		Logger: b.deps.Logger,
	})
	return b.Backend.Init()
}

// Close stops the writer, flushing what is queued.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
