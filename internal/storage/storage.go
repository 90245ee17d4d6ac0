// internal/storage/storage.go
package storage

import (
	"time"

	"github.com/openworld/physync/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Entity lifetime
	AddEntity(e *core.EntityInfo) error
	RemoveEntity(id core.EntityID, at time.Time) error

	// Recording
	RecordEdits(edits []core.EntityEdit) error
	RecordOwnershipChange(c *core.OwnershipChange) error
	RecordSyncStats(s *core.SyncStats) error
}

// Exportable is an optional interface for storage backends that produce a
// journal file when the session ends.
type Exportable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.ExportMetadata
}
