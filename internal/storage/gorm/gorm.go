// Package gormstorage implements the storage.Backend interface using GORM
// with internal queues and a background DB writer goroutine. The postgres and
// sqlite backends wrap it.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/openworld/physync/internal/model"
	"github.com/openworld/physync/internal/model/convert"
	"github.com/openworld/physync/internal/queue"
	"github.com/openworld/physync/pkg/core"
)

// DefaultWriteInterval is how often the writer drains its queues.
const DefaultWriteInterval = 500 * time.Millisecond

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("gormstorage: no session started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	WriteInterval time.Duration
}

type removal struct {
	EntityUUID string
	At         time.Time
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Entities         *queue.Queue[model.Entity]
	Removals         *queue.Queue[removal]
	EntityEdits      *queue.Queue[model.EntityEdit]
	OwnershipChanges *queue.Queue[model.OwnershipChange]
	SyncStats        *queue.Queue[model.SyncStats]
}

func newQueues() *queues {
	return &queues{
		Entities:         queue.New[model.Entity](),
		Removals:         queue.New[removal](),
		EntityEdits:      queue.New[model.EntityEdit](),
		OwnershipChanges: queue.New[model.OwnershipChange](),
		SyncStats:        queue.New[model.SyncStats](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64

	// writeMu serializes drains between the writer goroutine and explicit
	// flushes from EndSession/Close.
	writeMu   sync.Mutex
	lastWrite atomic.Int64

	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = DefaultWriteInterval
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init creates internal queues and starts the DB writer goroutine. Schema
// migration is the caller's job.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gormstorage: no database configured")
	}
	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	b.stopOnce = sync.Once{}

	go b.writerLoop()
	return nil
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() { close(b.stopChan) })
	<-b.done
	return b.Flush()
}

// StartSession inserts the session row synchronously so the writer can stamp
// its ID on everything that follows.
func (b *Backend) StartSession(s *core.Session) error {
	rec := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}
	b.sessionID.Store(uint64(rec.ID))
	return nil
}

// EndSession flushes the queues and stamps the session's end time.
func (b *Backend) EndSession() error {
	id := b.sessionID.Load()
	if id == 0 {
		return ErrNoSession
	}
	if err := b.Flush(); err != nil {
		return err
	}
	err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Update("end_time", time.Now()).Error
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	b.sessionID.Store(0)
	return nil
}

// SessionID returns the database ID of the current session, 0 if none.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// SetSessionID resumes writing into an existing session row.
func (b *Backend) SetSessionID(id uint) {
	b.sessionID.Store(uint64(id))
}

func (b *Backend) AddEntity(e *core.EntityInfo) error {
	if b.sessionID.Load() == 0 {
		return ErrNoSession
	}
	b.queues.Entities.Push(convert.CoreToEntity(*e))
	return nil
}

func (b *Backend) RemoveEntity(id core.EntityID, at time.Time) error {
	if b.sessionID.Load() == 0 {
		return ErrNoSession
	}
	b.queues.Removals.Push(removal{EntityUUID: id.String(), At: at})
	return nil
}

// RecordEdits converts and queues outgoing edits.
func (b *Backend) RecordEdits(edits []core.EntityEdit) error {
	if b.sessionID.Load() == 0 {
		return ErrNoSession
	}
	items := make([]model.EntityEdit, len(edits))
	for i, e := range edits {
		items[i] = convert.CoreToEntityEdit(e)
	}
	b.queues.EntityEdits.Push(items...)
	return nil
}

func (b *Backend) RecordOwnershipChange(c *core.OwnershipChange) error {
	if b.sessionID.Load() == 0 {
		return ErrNoSession
	}
	b.queues.OwnershipChanges.Push(convert.CoreToOwnershipChange(*c))
	return nil
}

// RecordSyncStats queues a stats row, stamped with the duration of the last
// write cycle.
func (b *Backend) RecordSyncStats(s *core.SyncStats) error {
	if b.sessionID.Load() == 0 {
		return ErrNoSession
	}
	rec := convert.CoreToSyncStats(*s)
	rec.LastWriteDurationMs = float32(b.GetLastWriteDuration()) / float32(time.Millisecond)
	b.queues.SyncStats.Push(rec)
	return nil
}

// GetLastWriteDuration returns how long the last write cycle took.
func (b *Backend) GetLastWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// QueueLengths reports pending rows per queue.
func (b *Backend) QueueLengths() map[string]int {
	return map[string]int{
		"entities":          b.queues.Entities.Len(),
		"removals":          b.queues.Removals.Len(),
		"entity_edits":      b.queues.EntityEdits.Len(),
		"ownership_changes": b.queues.OwnershipChanges.Len(),
		"sync_stats":        b.queues.SyncStats.Len(),
	}
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches are put back at the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger, prepare func([]T)) error {
	if q.Empty() {
		return nil
	}

	items := q.GetAndEmpty()
	if prepare != nil {
		prepare(items)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
	if err != nil {
		log.Error("Error creating rows", "table", name, "count", len(items), "error", err)
		q.PushFront(items...)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Flush drains every queue into the database now.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	defer func() { b.lastWrite.Store(int64(time.Since(start))) }()

	db := b.deps.DB
	log := b.deps.Logger
	sessionID := uint(b.sessionID.Load())
	if sessionID == 0 {
		return nil
	}

	var errs []error
	entErr := writeQueue(db, b.queues.Entities, "entities", log, func(items []model.Entity) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	})
	errs = append(errs, entErr)

	// Removals update rows that must already exist, so they wait for entities.
	var removals []removal
	if entErr == nil {
		removals = b.queues.Removals.GetAndEmpty()
	}
	for _, r := range removals {
		err := db.Model(&model.Entity{}).
			Where("session_id = ? AND entity_uuid = ?", sessionID, r.EntityUUID).
			Update("removed_at", r.At).Error
		if err != nil {
			log.Error("Error marking entity removed", "entity", r.EntityUUID, "error", err)
			b.queues.Removals.Push(r)
			errs = append(errs, err)
		}
	}

	errs = append(errs,
		writeQueue(db, b.queues.EntityEdits, "entity edits", log, func(items []model.EntityEdit) {
			for i := range items {
				items[i].SessionID = sessionID
			}
		}),
		writeQueue(db, b.queues.OwnershipChanges, "ownership changes", log, func(items []model.OwnershipChange) {
			for i := range items {
				items[i].SessionID = sessionID
			}
		}),
		writeQueue(db, b.queues.SyncStats, "sync stats", log, func(items []model.SyncStats) {
			for i := range items {
				items[i].SessionID = sessionID
			}
		}),
	)
	return errors.Join(errs...)
}

// writerLoop periodically drains queues into the DB until Close.
func (b *Backend) writerLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			// errors are logged per queue and the rows retried next tick
			_ = b.Flush()
		}
	}
}
