// Package entity is the in-memory entity model driven by the physics
// simulation. Entities are not safe for concurrent use; callers hold the
// simulation lock.
package entity

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/openworld/physync/internal/physics"
	"github.com/openworld/physync/internal/shape"
	"github.com/openworld/physync/pkg/core"
)

const (
	// EpsilonLinearSpeed is 1 mm/s; slower kinematic motion stops.
	EpsilonLinearSpeed = 0.001
	// EpsilonAngularSpeed is 0.1 deg/s.
	EpsilonAngularSpeed = 0.0017453
	// MinVelocityDelta is the smallest server velocity change that counts.
	MinVelocityDelta = 0.01
)

// Definition is everything needed to create an entity.
type Definition struct {
	ID            core.EntityID
	Name          string
	Shape         shape.Descriptor
	Mass          float64
	Dynamic       bool
	Collisionless bool
	Properties    core.EntityProperties
}

type Entity struct {
	id   core.EntityID
	name string

	position        mgl64.Vec3
	rotation        mgl64.Quat
	velocity        mgl64.Vec3
	angularVelocity mgl64.Vec3
	acceleration    mgl64.Vec3
	gravity         mgl64.Vec3
	linearDamping   float64
	angularDamping  float64
	mass            float64

	shape         shape.Descriptor
	dynamic       bool
	collisionless bool

	simulatorID core.SessionID
	dirty       core.DirtyFlags

	lastSimulated time.Time
	lastEdited    time.Time
	lastBroadcast time.Time
}

// New creates an entity from def. The initial property set does not raise
// dirty flags.
func New(def Definition) *Entity {
	e := &Entity{
		id:            def.ID,
		name:          def.Name,
		rotation:      mgl64.QuatIdent(),
		mass:          def.Mass,
		shape:         def.Shape,
		dynamic:       def.Dynamic,
		collisionless: def.Collisionless,
	}
	if e.id == (core.EntityID{}) {
		e.id = core.NewEntityID()
	}
	e.assign(def.Properties)
	return e
}

func (e *Entity) assign(p core.EntityProperties) {
	if p.Name != nil {
		e.name = *p.Name
	}
	if p.Position != nil {
		e.position = *p.Position
	}
	if p.Rotation != nil {
		e.rotation = *p.Rotation
	}
	if p.Velocity != nil {
		e.velocity = *p.Velocity
	}
	if p.AngularVelocity != nil {
		e.angularVelocity = *p.AngularVelocity
	}
	if p.Acceleration != nil {
		e.acceleration = *p.Acceleration
	}
	if p.Gravity != nil {
		e.gravity = *p.Gravity
	}
	if p.LinearDamping != nil {
		e.linearDamping = *p.LinearDamping
	}
	if p.AngularDamping != nil {
		e.angularDamping = *p.AngularDamping
	}
	if p.SimulatorID != nil {
		e.simulatorID = *p.SimulatorID
	}
	if p.LastEdited != nil {
		e.lastEdited = *p.LastEdited
	}
}

func (e *Entity) ID() core.EntityID                 { return e.id }
func (e *Entity) Name() string                      { return e.name }
func (e *Entity) Position() mgl64.Vec3              { return e.position }
func (e *Entity) SetPosition(p mgl64.Vec3)          { e.position = p }
func (e *Entity) Rotation() mgl64.Quat              { return e.rotation }
func (e *Entity) SetRotation(q mgl64.Quat)          { e.rotation = q }
func (e *Entity) Velocity() mgl64.Vec3              { return e.velocity }
func (e *Entity) SetVelocity(v mgl64.Vec3)          { e.velocity = v }
func (e *Entity) AngularVelocity() mgl64.Vec3       { return e.angularVelocity }
func (e *Entity) SetAngularVelocity(w mgl64.Vec3)   { e.angularVelocity = w }
func (e *Entity) Acceleration() mgl64.Vec3          { return e.acceleration }
func (e *Entity) SetAcceleration(a mgl64.Vec3)      { e.acceleration = a }
func (e *Entity) Gravity() mgl64.Vec3               { return e.gravity }
func (e *Entity) Mass() float64                     { return e.mass }
func (e *Entity) LinearDamping() float64            { return e.linearDamping }
func (e *Entity) AngularDamping() float64           { return e.angularDamping }
func (e *Entity) ShapeDescriptor() shape.Descriptor { return e.shape }
func (e *Entity) SimulatorID() core.SessionID       { return e.simulatorID }
func (e *Entity) CollisionsWillMove() bool          { return e.dynamic }
func (e *Entity) DirtyFlags() core.DirtyFlags       { return e.dirty }
func (e *Entity) ClearDirtyFlags()                  { e.dirty = 0 }
func (e *Entity) LastSimulated() time.Time          { return e.lastSimulated }
func (e *Entity) SetLastSimulated(t time.Time)      { e.lastSimulated = t }
func (e *Entity) LastEdited() time.Time             { return e.lastEdited }
func (e *Entity) SetLastEdited(t time.Time)         { e.lastEdited = t }
func (e *Entity) LastBroadcast() time.Time          { return e.lastBroadcast }
func (e *Entity) SetLastBroadcast(t time.Time)      { e.lastBroadcast = t }
func (e *Entity) MarkDirty(flags core.DirtyFlags)   { e.dirty |= flags }

// IsMoving reports whether the entity has any velocity.
func (e *Entity) IsMoving() bool {
	return e.velocity != (mgl64.Vec3{}) || e.angularVelocity != (mgl64.Vec3{})
}

// ShouldBePhysical reports whether the entity needs a rigid body.
func (e *Entity) ShouldBePhysical() bool {
	return !e.collisionless && e.shape.Type != shape.TypeNone
}

// IsReadyToComputeShape reports whether the shape can be built yet. Hull
// sets need their point clouds first.
func (e *Entity) IsReadyToComputeShape() bool {
	if e.shape.Type != shape.TypeCompound {
		return true
	}
	if e.shape.NumSubShapes() == 0 {
		return false
	}
	for _, pts := range e.shape.Points {
		if len(pts) == 0 {
			return false
		}
	}
	return true
}

// SetShape replaces the collision shape.
func (e *Entity) SetShape(d shape.Descriptor) {
	e.shape = d
	e.dirty |= core.DirtyShape
}

// SetDynamic changes whether collisions move the entity.
func (e *Entity) SetDynamic(dynamic bool) {
	if e.dynamic != dynamic {
		e.dynamic = dynamic
		e.dirty |= core.DirtyMotionType
	}
}

// SimulateKinematicMotion advances the entity by dt seconds without the
// physics engine: damped angular motion integrated in engine-sized substeps,
// then damped linear motion under the entity's acceleration.
func (e *Entity) SimulateKinematicMotion(dt float64) {
	if dt <= 0 {
		return
	}

	if e.angularVelocity != (mgl64.Vec3{}) {
		if e.angularDamping > 0 {
			e.angularVelocity = e.angularVelocity.Mul(physics.DampingFactor(e.angularDamping, dt))
		}
		if e.angularVelocity.Len() < EpsilonAngularSpeed {
			e.angularVelocity = mgl64.Vec3{}
			e.dirty |= core.DirtyMotionType
		} else {
			rotation := e.rotation
			remaining := dt
			for remaining > physics.FixedSubstep {
				rotation = physics.RotationStep(e.angularVelocity, physics.FixedSubstep).Mul(rotation).Normalize()
				remaining -= physics.FixedSubstep
			}
			e.rotation = physics.RotationStep(e.angularVelocity, remaining).Mul(rotation).Normalize()
		}
	}

	if e.velocity != (mgl64.Vec3{}) {
		velocity := e.velocity
		if e.linearDamping > 0 {
			velocity = velocity.Mul(physics.DampingFactor(e.linearDamping, dt))
		}
		position := e.position.Add(velocity.Mul(dt))
		velocity = velocity.Add(e.acceleration.Mul(dt))
		if velocity.Len() < EpsilonLinearSpeed {
			e.velocity = mgl64.Vec3{}
			e.dirty |= core.DirtyMotionType
		} else {
			e.position = position
			e.velocity = velocity
		}
	}
}

// Update steps a non-physical entity.
func (e *Entity) Update(dt float64, now time.Time) {
	e.SimulateKinematicMotion(dt)
	e.lastSimulated = now
}

// ApplyProperties merges a property set received from the server or a
// local script and returns the dirty flags it raised.
func (e *Entity) ApplyProperties(p core.EntityProperties) core.DirtyFlags {
	var flags core.DirtyFlags

	if p.Name != nil {
		e.name = *p.Name
	}
	if p.Position != nil && *p.Position != e.position {
		e.position = *p.Position
		flags |= core.DirtyPosition
	}
	if p.Rotation != nil && *p.Rotation != e.rotation {
		e.rotation = *p.Rotation
		flags |= core.DirtyRotation
	}
	if p.Velocity != nil && e.velocity.Sub(*p.Velocity).Len() > MinVelocityDelta {
		e.velocity = *p.Velocity
		flags |= core.DirtyLinearVelocity
	} else if p.Velocity != nil && *p.Velocity == (mgl64.Vec3{}) && e.velocity != (mgl64.Vec3{}) {
		e.velocity = mgl64.Vec3{}
		flags |= core.DirtyLinearVelocity
	}
	if p.AngularVelocity != nil && *p.AngularVelocity != e.angularVelocity {
		e.angularVelocity = *p.AngularVelocity
		flags |= core.DirtyAngularVelocity
	}
	if p.Acceleration != nil {
		e.acceleration = *p.Acceleration
	}
	if p.Gravity != nil && *p.Gravity != e.gravity {
		e.gravity = *p.Gravity
		flags |= core.DirtyLinearVelocity
	}
	if p.LinearDamping != nil && *p.LinearDamping != e.linearDamping {
		e.linearDamping = *p.LinearDamping
		flags |= core.DirtyMaterial
	}
	if p.AngularDamping != nil && *p.AngularDamping != e.angularDamping {
		e.angularDamping = *p.AngularDamping
		flags |= core.DirtyMaterial
	}
	if p.SimulatorID != nil && *p.SimulatorID != e.simulatorID {
		e.simulatorID = *p.SimulatorID
		flags |= core.DirtySimulatorID
	}
	if p.LastEdited != nil {
		e.lastEdited = *p.LastEdited
	}

	if flags.Any(core.DirtyTransform | core.DirtyVelocities) {
		flags |= core.DirtyPhysicsActivation
	}
	e.dirty |= flags
	return flags
}

// Properties returns a full snapshot of the entity.
func (e *Entity) Properties() core.EntityProperties {
	var p core.EntityProperties
	p.SetName(e.name)
	p.SetPosition(e.position)
	p.SetRotation(e.rotation)
	p.SetVelocity(e.velocity)
	p.SetAngularVelocity(e.angularVelocity)
	p.SetAcceleration(e.acceleration)
	p.SetGravity(e.gravity)
	p.SetLinearDamping(e.linearDamping)
	p.SetAngularDamping(e.angularDamping)
	p.SetSimulatorID(e.simulatorID)
	if !e.lastEdited.IsZero() {
		p.SetLastEdited(e.lastEdited)
	}
	return p
}
