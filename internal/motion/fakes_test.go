package motion

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/openworld/physync/internal/physics"
	"github.com/openworld/physync/internal/shape"
	"github.com/openworld/physync/pkg/core"
)

type fakeWorld struct {
	step   uint32
	offset mgl64.Vec3
}

func (w *fakeWorld) SimulationStep() uint32  { return w.step }
func (w *fakeWorld) WorldOffset() mgl64.Vec3 { return w.offset }

type fakeBody struct {
	transform       physics.Transform
	linear          mgl64.Vec3
	angular         mgl64.Vec3
	gravity         mgl64.Vec3
	linearDamping   float64
	angularDamping  float64
	mass            float64
	motionType      core.MotionType
	active          bool
	activated       int
	deactivationReq int
	collisionShape  shape.CollisionShape
}

func newFakeBody() *fakeBody {
	return &fakeBody{transform: physics.IdentityTransform(), active: true}
}

func (b *fakeBody) WorldTransform() physics.Transform        { return b.transform }
func (b *fakeBody) SetWorldTransform(t physics.Transform)    { b.transform = t }
func (b *fakeBody) LinearVelocity() mgl64.Vec3               { return b.linear }
func (b *fakeBody) SetLinearVelocity(v mgl64.Vec3)           { b.linear = v }
func (b *fakeBody) AngularVelocity() mgl64.Vec3              { return b.angular }
func (b *fakeBody) SetAngularVelocity(v mgl64.Vec3)          { b.angular = v }
func (b *fakeBody) SetGravity(g mgl64.Vec3)                  { b.gravity = g }
func (b *fakeBody) LinearDamping() float64                   { return b.linearDamping }
func (b *fakeBody) AngularDamping() float64                  { return b.angularDamping }
func (b *fakeBody) SetDamping(linear, angular float64)       { b.linearDamping, b.angularDamping = linear, angular }
func (b *fakeBody) SetMass(mass float64)                     { b.mass = mass }
func (b *fakeBody) CollisionShape() shape.CollisionShape     { return b.collisionShape }
func (b *fakeBody) SetCollisionShape(s shape.CollisionShape) { b.collisionShape = s }
func (b *fakeBody) MotionType() core.MotionType              { return b.motionType }
func (b *fakeBody) SetMotionType(m core.MotionType)          { b.motionType = m }
func (b *fakeBody) IsActive() bool                           { return b.active }
func (b *fakeBody) RequestDeactivation()                     { b.deactivationReq++ }

func (b *fakeBody) Activate() {
	b.active = true
	b.activated++
}

type fakeEntity struct {
	id              core.EntityID
	name            string
	position        mgl64.Vec3
	rotation        mgl64.Quat
	velocity        mgl64.Vec3
	angularVelocity mgl64.Vec3
	acceleration    mgl64.Vec3
	gravity         mgl64.Vec3
	mass            float64
	linearDamping   float64
	angularDamping  float64
	descriptor      shape.Descriptor
	simulatorID     core.SessionID
	moving          bool
	willMove        bool
	dirty           core.DirtyFlags
	lastSimulated   time.Time
	lastEdited      time.Time
	lastBroadcast   time.Time
	kinematicSteps  []float64
}

func newFakeEntity() *fakeEntity {
	return &fakeEntity{
		id:         core.NewEntityID(),
		name:       "crate",
		rotation:   mgl64.QuatIdent(),
		mass:       1,
		descriptor: shape.Box(mgl64.Vec3{0.5, 0.5, 0.5}),
	}
}

func (e *fakeEntity) ID() core.EntityID                  { return e.id }
func (e *fakeEntity) Name() string                       { return e.name }
func (e *fakeEntity) Position() mgl64.Vec3               { return e.position }
func (e *fakeEntity) SetPosition(p mgl64.Vec3)           { e.position = p }
func (e *fakeEntity) Rotation() mgl64.Quat               { return e.rotation }
func (e *fakeEntity) SetRotation(q mgl64.Quat)           { e.rotation = q }
func (e *fakeEntity) Velocity() mgl64.Vec3               { return e.velocity }
func (e *fakeEntity) SetVelocity(v mgl64.Vec3)           { e.velocity = v }
func (e *fakeEntity) AngularVelocity() mgl64.Vec3        { return e.angularVelocity }
func (e *fakeEntity) SetAngularVelocity(w mgl64.Vec3)    { e.angularVelocity = w }
func (e *fakeEntity) Acceleration() mgl64.Vec3           { return e.acceleration }
func (e *fakeEntity) SetAcceleration(a mgl64.Vec3)       { e.acceleration = a }
func (e *fakeEntity) Gravity() mgl64.Vec3                { return e.gravity }
func (e *fakeEntity) Mass() float64                      { return e.mass }
func (e *fakeEntity) LinearDamping() float64             { return e.linearDamping }
func (e *fakeEntity) AngularDamping() float64            { return e.angularDamping }
func (e *fakeEntity) ShapeDescriptor() shape.Descriptor  { return e.descriptor }
func (e *fakeEntity) SimulatorID() core.SessionID        { return e.simulatorID }
func (e *fakeEntity) IsMoving() bool                     { return e.moving }
func (e *fakeEntity) CollisionsWillMove() bool           { return e.willMove }
func (e *fakeEntity) DirtyFlags() core.DirtyFlags        { return e.dirty }
func (e *fakeEntity) ClearDirtyFlags()                   { e.dirty = 0 }
func (e *fakeEntity) LastSimulated() time.Time           { return e.lastSimulated }
func (e *fakeEntity) SetLastSimulated(t time.Time)       { e.lastSimulated = t }
func (e *fakeEntity) SetLastEdited(t time.Time)          { e.lastEdited = t }
func (e *fakeEntity) SetLastBroadcast(t time.Time)       { e.lastBroadcast = t }
func (e *fakeEntity) SimulateKinematicMotion(dt float64) { e.kinematicSteps = append(e.kinematicSteps, dt) }

type recordingSender struct {
	edits []core.EntityEdit
}

func (s *recordingSender) QueueEditEntityMessage(edit core.EntityEdit) {
	s.edits = append(s.edits, edit)
}

func (s *recordingSender) last() core.EntityEdit {
	return s.edits[len(s.edits)-1]
}

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type fixture struct {
	world  *fakeWorld
	body   *fakeBody
	entity *fakeEntity
	bridge *Bridge
	sender *recordingSender
	local  core.SessionID
}

func newFixture() *fixture {
	f := &fixture{
		world:  &fakeWorld{step: 1},
		body:   newFakeBody(),
		entity: newFakeEntity(),
		sender: &recordingSender{},
		local:  core.NewSessionID(),
	}
	f.bridge = NewBridge(shape.Build(f.entity.descriptor), f.entity, f.world,
		WithClock(func() time.Time { return fixedNow }))
	f.bridge.SetBody(f.body)
	f.bridge.SetMotionType(core.MotionDynamic)
	return f
}

// synced bootstraps the remote belief and sends one active update as owner,
// leaving the world at step 2.
func (f *fixture) synced() *fixture {
	f.entity.simulatorID = f.local
	f.bridge.ShouldSendUpdate(f.world.step, f.local)
	f.world.step++
	f.bridge.SendUpdate(f.sender, f.local, f.world.step)
	return f
}
