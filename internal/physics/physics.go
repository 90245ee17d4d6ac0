// Package physics holds the contract between the physics engine and the
// objects it simulates, plus the integration helpers both sides must agree on.
package physics

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/openworld/physync/internal/shape"
	"github.com/openworld/physync/pkg/core"
)

// FixedSubstep is the engine's fixed integration substep in seconds.
const FixedSubstep = 1.0 / 60.0

// Transform is a rigid transform in simulation frame.
type Transform struct {
	Origin   mgl64.Vec3
	Rotation mgl64.Quat
}

// IdentityTransform returns a transform at the origin with no rotation.
func IdentityTransform() Transform {
	return Transform{Rotation: mgl64.QuatIdent()}
}

// MotionState is registered once per body. The engine calls it synchronously
// during its own step; calls are strictly nested and never re-entrant.
type MotionState interface {
	// ReadWorldTransform is called when the body is added to the world and
	// at the start of every substep for kinematic bodies.
	ReadWorldTransform(t *Transform)
	// WriteWorldTransform is called at the end of a step for dynamic bodies
	// that moved.
	WriteWorldTransform(t Transform)
}

// World is the engine-wide state a motion state may consult.
type World interface {
	// SimulationStep is the monotonic substep counter.
	SimulationStep() uint32
	// WorldOffset is added to simulation-frame positions to get world positions.
	WorldOffset() mgl64.Vec3
}

// Body is the engine's rigid body as seen by the object that drives it.
type Body interface {
	WorldTransform() Transform
	SetWorldTransform(t Transform)
	LinearVelocity() mgl64.Vec3
	SetLinearVelocity(v mgl64.Vec3)
	AngularVelocity() mgl64.Vec3
	SetAngularVelocity(v mgl64.Vec3)
	SetGravity(g mgl64.Vec3)
	LinearDamping() float64
	AngularDamping() float64
	SetDamping(linear, angular float64)
	SetMass(mass float64)
	CollisionShape() shape.CollisionShape
	SetCollisionShape(s shape.CollisionShape)

	MotionType() core.MotionType
	SetMotionType(m core.MotionType)

	IsActive() bool
	Activate()
	// RequestDeactivation lets the body fall asleep without being woken by
	// the next substep.
	RequestDeactivation()
}
