package motion

import (
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/openworld/physync/internal/physics"
	"github.com/openworld/physync/internal/shape"
	"github.com/openworld/physync/pkg/core"
)

const (
	// DynamicLinearVelocityThreshold is 5 cm/s.
	DynamicLinearVelocityThreshold = 0.05
	// DynamicAngularVelocityThreshold is about 5 deg/s.
	DynamicAngularVelocityThreshold = 0.087266
)

// Kind discriminates the objects a motion state can drive.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindEntity
)

func (k Kind) String() string {
	if k == KindEntity {
		return "entity"
	}
	return "invalid"
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithClock replaces time.Now for last-simulated and broadcast stamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		b.now = now
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// Bridge is the motion state of one entity-backed rigid body. It implements
// physics.MotionState and owns the divergence and ownership bookkeeping for
// its body. The entity is not owned: Detach drops it, after which every
// method is a no-op.
type Bridge struct {
	kind       Kind
	entity     Entity
	body       physics.Body
	world      physics.World
	shape      shape.CollisionShape
	motionType core.MotionType

	remote     RemoteState
	sentActive bool
	ownership  Ownership
	accel      AccelerationSample

	lastKinematicStep uint32

	now    func() time.Time
	logger *slog.Logger
}

var _ physics.MotionState = (*Bridge)(nil)

// NewBridge creates the motion state for e. The body is attached later by
// the engine through SetBody.
func NewBridge(s shape.CollisionShape, e Entity, w physics.World, opts ...Option) *Bridge {
	if e == nil {
		panic("motion: bridge requires an entity")
	}
	b := &Bridge{
		kind:   KindEntity,
		entity: e,
		world:  w,
		shape:  s,
		now:    time.Now,
		logger: slog.Default(),
	}
	b.remote.Rotation = mgl64.QuatIdent()
	if w != nil {
		b.lastKinematicStep = w.SimulationStep()
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) Kind() Kind                  { return b.kind }
func (b *Bridge) Entity() Entity              { return b.entity }
func (b *Bridge) Body() physics.Body          { return b.body }
func (b *Bridge) Shape() shape.CollisionShape { return b.shape }
func (b *Bridge) MotionType() core.MotionType { return b.motionType }

// RemoteState returns a copy of the current remote belief.
func (b *Bridge) RemoteState() RemoteState { return b.remote }

// MeasuredAcceleration is the acceleration measured at the last post-step
// report.
func (b *Bridge) MeasuredAcceleration() mgl64.Vec3 { return b.accel.Measured }

// SetBody attaches the engine body and pushes the entity's transform,
// velocities, damping and mass into it.
func (b *Bridge) SetBody(body physics.Body) {
	b.body = body
	if body == nil {
		return
	}
	body.SetMotionType(b.motionType)
	if b.entity != nil {
		b.applyEasyChangesToBody(core.DirtyTransform | core.DirtyVelocities | core.DirtyMaterial | core.DirtyMass)
	}
}

// Detach drops the entity. The body stays with the engine.
func (b *Bridge) Detach() {
	b.entity = nil
	b.kind = KindInvalid
}

// Name returns the entity name, or "" once detached.
func (b *Bridge) Name() string {
	if b.entity == nil {
		return ""
	}
	return b.entity.Name()
}

// SimulatorID returns the entity's simulator, or NoSession once detached.
func (b *Bridge) SimulatorID() core.SessionID {
	if b.entity == nil {
		return core.NoSession
	}
	return b.entity.SimulatorID()
}

func (b *Bridge) IsMoving() bool {
	return b.entity != nil && b.entity.IsMoving()
}

// ComputeMotionType classifies the body from the entity's flags.
func (b *Bridge) ComputeMotionType() core.MotionType {
	if b.entity == nil {
		return core.MotionStatic
	}
	if b.entity.CollisionsWillMove() {
		return core.MotionDynamic
	}
	if b.entity.IsMoving() {
		return core.MotionKinematic
	}
	return core.MotionStatic
}

// SetMotionType reclassifies the body and restarts acceleration
// measurement. Becoming kinematic restarts the kinematic clock at the
// current step.
func (b *Bridge) SetMotionType(m core.MotionType) {
	if m == core.MotionKinematic && b.motionType != core.MotionKinematic {
		b.lastKinematicStep = b.world.SimulationStep()
	}
	b.motionType = m
	var velocity mgl64.Vec3
	if b.body != nil {
		b.body.SetMotionType(m)
		velocity = b.body.LinearVelocity()
	}
	b.accel.Reset(b.world.SimulationStep(), velocity)
}

// ReadWorldTransform is called when the body enters the world and before
// each substep for kinematic bodies.
func (b *Bridge) ReadWorldTransform(t *physics.Transform) {
	if b.entity == nil {
		return
	}
	if b.motionType == core.MotionKinematic {
		step := b.world.SimulationStep()
		dt := float64(step-b.lastKinematicStep) * physics.FixedSubstep
		b.entity.SimulateKinematicMotion(dt)
		b.entity.SetLastSimulated(b.now())
		b.lastKinematicStep = step
	}
	t.Origin = b.entity.Position().Sub(b.world.WorldOffset())
	t.Rotation = b.entity.Rotation()
}

// WriteWorldTransform is called after a step for dynamic bodies that moved.
func (b *Bridge) WriteWorldTransform(t physics.Transform) {
	if b.entity == nil || b.body == nil {
		return
	}
	if b.accel.Measure(b.world.SimulationStep(), b.body.LinearVelocity(), b.body.LinearDamping()) {
		b.accel.UpdateGravityStreak(b.entity.Gravity())
	}

	b.entity.SetPosition(t.Origin.Add(b.world.WorldOffset()))
	b.entity.SetRotation(t.Rotation)
	b.entity.SetVelocity(b.body.LinearVelocity())
	b.entity.SetAngularVelocity(b.body.AngularVelocity())
	b.entity.SetLastSimulated(b.now())

	b.ownership.ObserveStep(b.entity.SimulatorID() != core.NoSession)
}

func (b *Bridge) updateServerPhysicsVariables(flags core.DirtyFlags) {
	if flags.Has(core.DirtyPosition) {
		b.remote.Position = b.entity.Position().Sub(b.world.WorldOffset())
	}
	if flags.Has(core.DirtyRotation) {
		b.remote.Rotation = b.entity.Rotation()
	}
	if flags.Has(core.DirtyLinearVelocity) {
		b.remote.Velocity = b.entity.Velocity()
	}
	if flags.Has(core.DirtyAngularVelocity) {
		b.remote.AngularVelocity = b.entity.AngularVelocity()
	}
}

func (b *Bridge) applyEasyChangesToBody(flags core.DirtyFlags) {
	if flags.Any(core.DirtyTransform) {
		b.body.SetWorldTransform(physics.Transform{
			Origin:   b.entity.Position().Sub(b.world.WorldOffset()),
			Rotation: b.entity.Rotation(),
		})
	}
	if flags.Has(core.DirtyLinearVelocity) {
		b.body.SetLinearVelocity(b.entity.Velocity())
		b.body.SetGravity(b.entity.Gravity())
	}
	if flags.Has(core.DirtyAngularVelocity) {
		b.body.SetAngularVelocity(b.entity.AngularVelocity())
	}
	if flags.Has(core.DirtyMaterial) {
		b.body.SetDamping(b.entity.LinearDamping(), b.entity.AngularDamping())
	}
	if flags.Has(core.DirtyMass) {
		b.body.SetMass(b.entity.Mass())
	}
}

// HandleEasyChanges applies entity changes that do not require the body to
// be rebuilt, including simulator-ID hand-offs announced by the server.
func (b *Bridge) HandleEasyChanges(flags core.DirtyFlags, local core.SessionID) {
	if b.entity == nil || b.body == nil {
		return
	}
	b.updateServerPhysicsVariables(flags)
	b.applyEasyChangesToBody(flags)

	if flags.Has(core.DirtySimulatorID) {
		b.ownership.SimulatorChanged()
		if b.entity.SimulatorID() == core.NoSession && !b.entity.IsMoving() && b.body.IsActive() {
			// coming to rest per a remote simulation; do not wake it again
			flags &^= core.DirtyPhysicsActivation
			b.body.RequestDeactivation()
		} else if b.entity.SimulatorID() != local {
			b.ownership.ResetBid()
		}
	}
	if flags.Has(core.DirtyPhysicsActivation) && !b.body.IsActive() {
		b.body.Activate()
	}
}

// HandleHardAndEasyChanges additionally rebuilds the collision shape and
// reclassifies the motion type when those changed.
func (b *Bridge) HandleHardAndEasyChanges(flags core.DirtyFlags, local core.SessionID, shapes ShapeSource) {
	if b.entity == nil || b.body == nil {
		return
	}
	if flags.Has(core.DirtyShape) && shapes != nil {
		if s := shapes.GetShape(b.entity.ShapeDescriptor()); s != nil {
			if s == b.shape {
				shapes.ReleaseShape(s)
			} else {
				if b.shape != nil {
					shapes.ReleaseShape(b.shape)
				}
				b.shape = s
				b.body.SetCollisionShape(s)
			}
		}
	}
	if flags.Has(core.DirtyMotionType) {
		b.SetMotionType(b.ComputeMotionType())
	}
	b.HandleEasyChanges(flags, local)
}

// IsCandidateForOwnership reports whether the body belongs in the outgoing
// set for session.
func (b *Bridge) IsCandidateForOwnership(session core.SessionID) bool {
	if b.body == nil || b.entity == nil {
		return false
	}
	return b.ownership.IsCandidate() || session == b.entity.SimulatorID()
}

// Bump makes the body an ownership candidate.
func (b *Bridge) Bump() {
	b.ownership.Bump()
}

// ShouldSendUpdate runs the divergence check and the ownership arbiter for
// one synchronization pass.
func (b *Bridge) ShouldSendUpdate(step uint32, local core.SessionID) bool {
	if b.entity == nil || b.body == nil {
		return false
	}
	outOfSync := b.RemoteSimulationOutOfSync(step)
	return b.ownership.Decide(outOfSync, b.entity.SimulatorID() == local)
}

// SendUpdate builds the outgoing property set from the entity, refreshes
// the remote belief and hands the edit to sender.
func (b *Bridge) SendUpdate(sender EditSender, local core.SessionID, step uint32) {
	if b.entity == nil || b.body == nil {
		return
	}
	e := b.entity

	active := b.body.IsActive()
	if !active {
		e.SetVelocity(mgl64.Vec3{})
		e.SetAngularVelocity(mgl64.Vec3{})
		e.SetAcceleration(mgl64.Vec3{})
		b.sentActive = false
	} else {
		if b.accel.IsBallistic() {
			e.SetAcceleration(e.Gravity())
		} else {
			e.SetAcceleration(mgl64.Vec3{})
		}

		movingSlowly := physics.LengthSquared(e.Velocity()) < DynamicLinearVelocityThreshold*DynamicLinearVelocityThreshold &&
			physics.LengthSquared(e.AngularVelocity()) < DynamicAngularVelocityThreshold*DynamicAngularVelocityThreshold &&
			e.Acceleration() == (mgl64.Vec3{})
		if movingSlowly {
			// nudge other observers toward deactivating their copies
			e.SetVelocity(mgl64.Vec3{})
			e.SetAngularVelocity(mgl64.Vec3{})
		}
		b.sentActive = true
	}

	b.remote.Position = e.Position().Sub(b.world.WorldOffset())
	b.remote.Rotation = e.Rotation()
	b.remote.Velocity = e.Velocity()
	b.remote.Acceleration = e.Acceleration()
	b.remote.AngularVelocity = e.AngularVelocity()

	var props core.EntityProperties
	props.SetPosition(e.Position())
	props.SetRotation(b.remote.Rotation)
	props.SetVelocity(b.remote.Velocity)
	props.SetAcceleration(b.remote.Acceleration)
	props.SetAngularVelocity(b.remote.AngularVelocity)

	lastSimulated := e.LastSimulated()
	e.SetLastEdited(lastSimulated)
	props.SetLastEdited(lastSimulated)

	if local == e.SimulatorID() && !active {
		// still ours until the server says otherwise
		props.SetSimulatorID(core.NoSession)
	} else {
		props.SetSimulatorID(local)
	}

	if SendPhysicsUpdates() {
		sender.QueueEditEntityMessage(core.EntityEdit{
			EntityID:   e.ID(),
			SessionID:  local,
			Step:       step,
			Time:       b.now(),
			Properties: props,
		})
		e.SetLastBroadcast(b.now())
	} else {
		b.logger.Debug("physics update not sent", "entity", e.ID(), "step", step)
	}

	b.remote.LastStep = step
}

// IncomingDirtyFlags returns and clears the entity's dirty flags, adding
// DirtyMotionType when the body classification no longer matches whether
// the entity moves.
func (b *Bridge) IncomingDirtyFlags() core.DirtyFlags {
	if b.body == nil || b.entity == nil {
		return 0
	}
	flags := b.entity.DirtyFlags()
	b.entity.ClearDirtyFlags()

	moving := b.entity.IsMoving()
	bodyType := b.body.MotionType()
	if (bodyType == core.MotionStatic && moving) || (bodyType == core.MotionKinematic && !moving) {
		flags |= core.DirtyMotionType
	}
	return flags
}
