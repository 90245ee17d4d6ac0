// Package motion ties rigid bodies in the physics engine to the entities
// they simulate and decides when local simulation results are sent to the
// entity server.
package motion

import (
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/openworld/physync/internal/shape"
	"github.com/openworld/physync/pkg/core"
)

// Entity is the externally owned domain object a bridge drives. Setters
// called by the bridge record simulation results and must not raise dirty
// flags; dirty flags come only from edits applied by the server or by
// local scripts.
type Entity interface {
	ID() core.EntityID
	Name() string

	Position() mgl64.Vec3
	SetPosition(p mgl64.Vec3)
	Rotation() mgl64.Quat
	SetRotation(q mgl64.Quat)
	Velocity() mgl64.Vec3
	SetVelocity(v mgl64.Vec3)
	AngularVelocity() mgl64.Vec3
	SetAngularVelocity(w mgl64.Vec3)
	Acceleration() mgl64.Vec3
	SetAcceleration(a mgl64.Vec3)
	Gravity() mgl64.Vec3
	Mass() float64
	LinearDamping() float64
	AngularDamping() float64
	ShapeDescriptor() shape.Descriptor

	SimulatorID() core.SessionID
	IsMoving() bool
	CollisionsWillMove() bool

	DirtyFlags() core.DirtyFlags
	ClearDirtyFlags()

	LastSimulated() time.Time
	SetLastSimulated(t time.Time)
	SetLastEdited(t time.Time)
	SetLastBroadcast(t time.Time)

	// SimulateKinematicMotion advances the entity by dt seconds along its
	// own velocity, acceleration and damping.
	SimulateKinematicMotion(dt float64)
}

// EditSender accepts outgoing entity edits. Implementations must be safe for
// concurrent use.
type EditSender interface {
	QueueEditEntityMessage(edit core.EntityEdit)
}

// ShapeSource hands out shared collision shapes.
type ShapeSource interface {
	GetShape(d shape.Descriptor) shape.CollisionShape
	ReleaseShape(s shape.CollisionShape) bool
}

var physicsUpdatesDisabled atomic.Bool

// SetSendPhysicsUpdates turns the enqueueing of computed updates on or off
// process-wide. Updates are still computed while it is off.
func SetSendPhysicsUpdates(enabled bool) {
	physicsUpdatesDisabled.Store(!enabled)
}

// SendPhysicsUpdates reports whether computed updates are enqueued.
func SendPhysicsUpdates() bool {
	return !physicsUpdatesDisabled.Load()
}
