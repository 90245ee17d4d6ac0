package engine

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/openworld/physync/internal/physics"
	"github.com/openworld/physync/internal/shape"
	"github.com/openworld/physync/pkg/core"
)

// Body is a rigid body owned by a World.
type Body struct {
	object Object

	transform      physics.Transform
	linear         mgl64.Vec3
	angular        mgl64.Vec3
	gravity        mgl64.Vec3
	linearDamping  float64
	angularDamping float64
	mass           float64
	motionType     core.MotionType
	collisionShape shape.CollisionShape

	active            bool
	wantsDeactivation bool
	idleTime          float64
	moved             bool
}

var _ physics.Body = (*Body)(nil)

func (b *Body) WorldTransform() physics.Transform        { return b.transform }
func (b *Body) SetWorldTransform(t physics.Transform)    { b.transform = t }
func (b *Body) LinearVelocity() mgl64.Vec3               { return b.linear }
func (b *Body) SetLinearVelocity(v mgl64.Vec3)           { b.linear = v }
func (b *Body) AngularVelocity() mgl64.Vec3              { return b.angular }
func (b *Body) SetAngularVelocity(w mgl64.Vec3)          { b.angular = w }
func (b *Body) Gravity() mgl64.Vec3                      { return b.gravity }
func (b *Body) SetGravity(g mgl64.Vec3)                  { b.gravity = g }
func (b *Body) LinearDamping() float64                   { return b.linearDamping }
func (b *Body) AngularDamping() float64                  { return b.angularDamping }
func (b *Body) Mass() float64                            { return b.mass }
func (b *Body) SetMass(mass float64)                     { b.mass = mass }
func (b *Body) CollisionShape() shape.CollisionShape     { return b.collisionShape }
func (b *Body) SetCollisionShape(s shape.CollisionShape) { b.collisionShape = s }
func (b *Body) MotionType() core.MotionType              { return b.motionType }
func (b *Body) SetMotionType(m core.MotionType)          { b.motionType = m }
func (b *Body) IsActive() bool                           { return b.active }
func (b *Body) Object() Object                           { return b.object }

// SetDamping clamps both coefficients to [0, 1].
func (b *Body) SetDamping(linear, angular float64) {
	b.linearDamping = clamp01(linear)
	b.angularDamping = clamp01(angular)
}

// Activate wakes the body.
func (b *Body) Activate() {
	b.active = true
	b.wantsDeactivation = false
	b.idleTime = 0
}

// RequestDeactivation puts the body to sleep at the end of the next
// substep.
func (b *Body) RequestDeactivation() {
	b.wantsDeactivation = true
}

func (b *Body) boundingRadius() float64 {
	if b.collisionShape == nil {
		return 0
	}
	return b.collisionShape.HalfExtents().Len()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
