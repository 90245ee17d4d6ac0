package shape

import "sync"

type managedShape struct {
	shape    CollisionShape
	refCount int
}

// Manager shares built collision shapes between bodies with identical
// descriptors.
type Manager struct {
	mu     sync.Mutex
	shapes map[uint64]*managedShape
	keys   map[CollisionShape]uint64
}

func NewManager() *Manager {
	return &Manager{
		shapes: make(map[uint64]*managedShape),
		keys:   make(map[CollisionShape]uint64),
	}
}

// GetShape returns the shape for d, building it on first use. Every call
// must be matched by a ReleaseShape. Returns nil when d does not describe a
// buildable shape.
func (m *Manager) GetShape(d Descriptor) CollisionShape {
	key := d.Hash()

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.shapes[key]; ok {
		entry.refCount++
		return entry.shape
	}

	s := Build(d)
	if s == nil {
		return nil
	}
	m.shapes[key] = &managedShape{shape: s, refCount: 1}
	m.keys[s] = key
	return s
}

// ReleaseShape drops one reference to s. It reports false if s is not
// managed here.
func (m *Manager) ReleaseShape(s CollisionShape) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[s]
	if !ok {
		return false
	}
	entry := m.shapes[key]
	entry.refCount--
	if entry.refCount <= 0 {
		delete(m.shapes, key)
		delete(m.keys, s)
	}
	return true
}

// NumShapes is the number of distinct live shapes.
func (m *Manager) NumShapes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shapes)
}

// RefCount returns the number of outstanding references to s.
func (m *Manager) RefCount(s CollisionShape) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[s]
	if !ok {
		return 0
	}
	return m.shapes[key].refCount
}
