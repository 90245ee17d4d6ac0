package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/openworld/physync/internal/config"
	v1 "github.com/openworld/physync/internal/storage/memory/export/v1"
	"github.com/openworld/physync/pkg/core"
)

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("memory: no session started")

// Backend keeps a session journal in memory and exports it to a JSON file
// when the session ends.
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session
	endTime time.Time

	entities  map[core.EntityID]*v1.EntityRecord
	ownership []core.OwnershipChange
	stats     []core.SyncStats
	editCount int

	lastExportPath     string
	lastExportMetadata core.ExportMetadata

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		entities: make(map[core.EntityID]*v1.EntityRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins a new journal, discarding anything recorded before.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *s
	if cp.StartTime.IsZero() {
		cp.StartTime = time.Now()
	}
	b.session = &cp
	b.endTime = time.Time{}

	b.entities = make(map[core.EntityID]*v1.EntityRecord)
	b.ownership = nil
	b.stats = nil
	b.editCount = 0

	return nil
}

// EndSession finalizes and exports the journal
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.endTime = time.Now()
	return b.exportJSON()
}

// AddEntity registers an entity. Re-adding an ID replaces its info but keeps
// edits that already arrived.
func (b *Backend) AddEntity(e *core.EntityInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.record(e.ID).Info = *e
	return nil
}

// RemoveEntity stamps the entity's removal time.
func (b *Backend) RemoveEntity(id core.EntityID, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.record(id).Info.RemovedAt = at
	return nil
}

// RecordEdits appends outgoing edits to their entities' records.
func (b *Backend) RecordEdits(edits []core.EntityEdit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	for _, e := range edits {
		r := b.record(e.EntityID)
		r.Edits = append(r.Edits, e)
	}
	b.editCount += len(edits)
	return nil
}

// RecordOwnershipChange records a simulator ID change
func (b *Backend) RecordOwnershipChange(c *core.OwnershipChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.ownership = append(b.ownership, *c)
	return nil
}

// RecordSyncStats records one frame's sync stats
func (b *Backend) RecordSyncStats(s *core.SyncStats) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.stats = append(b.stats, *s)
	return nil
}

// GetEntity returns a copy of the entity's journal record.
func (b *Backend) GetEntity(id core.EntityID) (v1.EntityRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.entities[id]
	if !ok {
		return v1.EntityRecord{}, false
	}
	cp := *r
	cp.Edits = append([]core.EntityEdit(nil), r.Edits...)
	return cp, true
}

// GetExportedFilePath returns the path of the last exported journal
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata returns metadata about the last export
func (b *Backend) GetExportMetadata() core.ExportMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMetadata
}

// record returns the entity's record, creating a placeholder for edits that
// arrive for an entity we never saw added. Callers hold mu.
func (b *Backend) record(id core.EntityID) *v1.EntityRecord {
	r, ok := b.entities[id]
	if !ok {
		r = &v1.EntityRecord{Info: core.EntityInfo{ID: id}}
		b.entities[id] = r
	}
	return r
}
