package cache

import (
	"sync"

	"github.com/openworld/physync/pkg/core"
)

// NameIndex maps entity names to their IDs for the current session.
// Names are not unique; the most recent entity wins.
type NameIndex struct {
	mu    sync.RWMutex
	names map[string]core.EntityID
}

// NewNameIndex creates a new NameIndex
func NewNameIndex() *NameIndex {
	return &NameIndex{
		names: make(map[string]core.EntityID),
	}
}

// Get retrieves an entity ID by name
func (c *NameIndex) Get(name string) (core.EntityID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.names[name]
	return id, ok
}

// Set stores an entity ID by name
func (c *NameIndex) Set(name string, id core.EntityID) {
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[name] = id
}

// Delete removes name if it still points at id
func (c *NameIndex) Delete(name string, id core.EntityID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.names[name] == id {
		delete(c.names, name)
	}
}

// Reset clears all names from the index
func (c *NameIndex) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = make(map[string]core.EntityID)
}
