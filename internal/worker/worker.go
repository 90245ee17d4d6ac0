package worker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/openworld/physync/internal/cache"
	"github.com/openworld/physync/internal/parser"
	"github.com/openworld/physync/internal/session"
	"github.com/openworld/physync/internal/simulation"
	"github.com/openworld/physync/internal/storage"
	"github.com/openworld/physync/pkg/core"
)

// ErrNoSession is returned for entity notifications that arrive before a
// session was started.
var ErrNoSession = errors.New("no active session")

// Simulator is the part of the sync loop the handlers drive. Do runs fn
// under the loop lock. ClearEntities also drops the bodies from the engine.
type Simulator interface {
	Do(fn func(*simulation.Simulation))
	SetSession(s core.Session)
	ClearEntities()
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	EntityCache *cache.EntityCache
	Session     *session.Context
	Parser      *parser.Parser
	Logger      *slog.Logger
}

// Manager applies server notifications to the entity cache, the simulation
// and the storage backend.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	sim     Simulator
}

// NewManager creates a new worker manager. backend may be nil.
func NewManager(deps Dependencies, backend storage.Backend, sim Simulator) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
		sim:     sim,
	}
}

func (m *Manager) hasBackend() bool {
	return m.backend != nil
}

// WriteDurationProvider is an optional interface that backends can implement
// to expose their last write duration for monitoring.
type WriteDurationProvider interface {
	GetLastWriteDuration() time.Duration
}

// GetLastWriteDuration returns the duration of the last backend write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastWriteDuration() time.Duration {
	if p, ok := m.backend.(WriteDurationProvider); ok {
		return p.GetLastWriteDuration()
	}
	return 0
}
