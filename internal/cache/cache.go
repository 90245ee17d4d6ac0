// Package cache holds the entities known to this client so inbound
// notifications can be applied without a storage round trip.
package cache

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/openworld/physync/internal/entity"
	"github.com/openworld/physync/pkg/core"
)

// ErrUnknownEntity is returned for IDs the cache has never seen or has
// already forgotten.
var ErrUnknownEntity = errors.New("unknown entity")

// ErrDuplicateEntity is returned when an entity is added twice.
var ErrDuplicateEntity = errors.New("entity already exists")

// EntityCache caches entities when they are created. Latency in these calls
// is critical to quickly apply incoming edits. The entities themselves are
// only touched under the simulation lock.
type EntityCache struct {
	m        sync.RWMutex
	entities map[core.EntityID]*entity.Entity
	names    *NameIndex
}

func NewEntityCache() *EntityCache {
	return &EntityCache{
		entities: make(map[core.EntityID]*entity.Entity),
		names:    NewNameIndex(),
	}
}

func (c *EntityCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.entities = make(map[core.EntityID]*entity.Entity)
	c.names.Reset()
}

func (c *EntityCache) Add(e *entity.Entity) error {
	c.m.Lock()
	defer c.m.Unlock()
	if _, ok := c.entities[e.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, e.ID())
	}
	c.entities[e.ID()] = e
	c.names.Set(e.Name(), e.ID())
	return nil
}

func (c *EntityCache) Get(id core.EntityID) (*entity.Entity, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	if e, ok := c.entities[id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
}

// GetByName looks an entity up by its name.
func (c *EntityCache) GetByName(name string) (*entity.Entity, error) {
	id, ok := c.names.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	return c.Get(id)
}

// Remove forgets id and returns the entity it held.
func (c *EntityCache) Remove(id core.EntityID) (*entity.Entity, error) {
	c.m.Lock()
	defer c.m.Unlock()
	e, ok := c.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	delete(c.entities, id)
	c.names.Delete(e.Name(), id)
	return e, nil
}

func (c *EntityCache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.entities)
}

// All returns every cached entity ordered by ID.
func (c *EntityCache) All() []*entity.Entity {
	c.m.RLock()
	out := make([]*entity.Entity, 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, e)
	}
	c.m.RUnlock()

	slices.SortFunc(out, func(a, b *entity.Entity) int {
		ia, ib := a.ID(), b.ID()
		return bytes.Compare(ia[:], ib[:])
	})
	return out
}

// Rename moves e in the name index after its name changed from previous.
func (c *EntityCache) Rename(e *entity.Entity, previous string) {
	c.names.Delete(previous, e.ID())
	c.names.Set(e.Name(), e.ID())
}
