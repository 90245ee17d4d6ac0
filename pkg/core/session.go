// pkg/core/session.go
package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Session describes one local participant's run of the simulation.
type Session struct {
	ID          SessionID
	Name        string
	StartTime   time.Time
	FrameRate   float64
	WorldOffset mgl64.Vec3
}

// EntityEdit is an outgoing entity-edit message: a sparse property set
// stamped with the simulation step it was computed for.
type EntityEdit struct {
	EntityID   EntityID
	SessionID  SessionID
	Step       uint32
	Time       time.Time
	Properties EntityProperties
}

// OwnershipChange records a simulator-ID change reported by the server.
type OwnershipChange struct {
	EntityID EntityID
	Step     uint32
	Time     time.Time
	Previous SessionID
	Current  SessionID
}

// SyncStats summarizes one synchronization pass.
type SyncStats struct {
	Time       time.Time
	Frame      uint64
	Step       uint32
	Bodies     int
	Candidates int
	Sent       int
	Queued     int
	Dropped    int
}
