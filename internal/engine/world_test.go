package engine

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openworld/physync/internal/entity"
	"github.com/openworld/physync/internal/motion"
	"github.com/openworld/physync/internal/physics"
	"github.com/openworld/physync/internal/shape"
	"github.com/openworld/physync/pkg/core"
)

func addEntity(t *testing.T, w *World, def entity.Definition) (*entity.Entity, *motion.Bridge, *Body) {
	t.Helper()
	e := entity.New(def)
	b := motion.NewBridge(shape.Build(def.Shape), e, w)
	body := w.AddObject(b)
	require.NotNil(t, body)
	return e, b, body
}

func dynamicBox(props core.EntityProperties) entity.Definition {
	return entity.Definition{
		Name:       "box",
		Shape:      shape.Box(mgl64.Vec3{0.5, 0.5, 0.5}),
		Mass:       1,
		Dynamic:    true,
		Properties: props,
	}
}

func TestWorld_AddObjectClassifiesAndReads(t *testing.T) {
	w := New(DefaultConfig())
	var props core.EntityProperties
	props.SetPosition(mgl64.Vec3{1, 2, 3})

	_, b, body := addEntity(t, w, dynamicBox(props))

	assert.Equal(t, 1, w.NumBodies())
	assert.Equal(t, core.MotionDynamic, body.MotionType())
	assert.Equal(t, core.MotionDynamic, b.MotionType())
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, body.WorldTransform().Origin)
	assert.Same(t, body, b.Body())
	assert.True(t, body.IsActive())
}

func TestWorld_StepSimulationSubsteps(t *testing.T) {
	w := New(DefaultConfig())

	assert.Equal(t, 0, w.StepSimulation(0.5*physics.FixedSubstep))
	assert.Equal(t, 1, w.StepSimulation(0.5*physics.FixedSubstep))
	assert.Equal(t, 3, w.StepSimulation(3*physics.FixedSubstep))
	assert.Equal(t, uint32(4), w.SimulationStep())

	// long frames are capped
	assert.Equal(t, 6, w.StepSimulation(1))
	assert.Equal(t, uint32(10), w.SimulationStep())
}

func TestWorld_GravityWritesBackToEntity(t *testing.T) {
	w := New(DefaultConfig())
	var props core.EntityProperties
	props.SetGravity(mgl64.Vec3{0, -10, 0})
	e, b, _ := addEntity(t, w, dynamicBox(props))

	w.StepSimulation(3 * physics.FixedSubstep)

	assert.InDelta(t, -0.5, e.Velocity().Y(), 1e-9)
	assert.Less(t, e.Position().Y(), 0.0)
	assert.InDelta(t, -10.0, b.MeasuredAcceleration().Y(), 1e-6)

	changed := w.ChangedMotionStates()
	require.Len(t, changed, 1)
	assert.Same(t, b, changed[0])
	assert.Empty(t, w.ChangedMotionStates())
}

func TestWorld_KinematicReadEverySubstep(t *testing.T) {
	w := New(DefaultConfig())
	var props core.EntityProperties
	props.SetVelocity(mgl64.Vec3{1, 0, 0})
	def := dynamicBox(props)
	def.Dynamic = false
	e, b, body := addEntity(t, w, def)
	require.Equal(t, core.MotionKinematic, b.MotionType())

	w.StepSimulation(6 * physics.FixedSubstep)

	assert.InDelta(t, 6*physics.FixedSubstep, e.Position().X(), 1e-9)
	assert.InDelta(t, e.Position().X(), body.WorldTransform().Origin.X(), 1e-12)
	assert.Empty(t, w.ChangedMotionStates(), "kinematic bodies are not written back")
}

func TestWorld_KinematicInsertedLateStartsInPlace(t *testing.T) {
	w := New(DefaultConfig())
	for i := 0; i < 100; i++ {
		w.StepSimulation(physics.FixedSubstep)
	}
	require.Equal(t, uint32(100), w.SimulationStep())

	var props core.EntityProperties
	props.SetVelocity(mgl64.Vec3{1, 0, 0})
	def := dynamicBox(props)
	def.Dynamic = false
	e, b, body := addEntity(t, w, def)
	require.Equal(t, core.MotionKinematic, b.MotionType())

	assert.Equal(t, mgl64.Vec3{}, e.Position())
	assert.Equal(t, mgl64.Vec3{}, body.WorldTransform().Origin)

	w.StepSimulation(physics.FixedSubstep)
	assert.InDelta(t, physics.FixedSubstep, e.Position().X(), 1e-9)
}

func TestWorld_StaticBodyDoesNotMove(t *testing.T) {
	w := New(DefaultConfig())
	def := dynamicBox(core.EntityProperties{})
	def.Dynamic = false
	_, b, body := addEntity(t, w, def)

	w.StepSimulation(1)

	assert.Equal(t, core.MotionStatic, b.MotionType())
	assert.Equal(t, mgl64.Vec3{}, body.WorldTransform().Origin)
}

func TestWorld_SleepsAfterDeactivationTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSubsteps = 1000
	w := New(cfg)
	var props core.EntityProperties
	props.SetVelocity(mgl64.Vec3{0.01, 0, 0})
	e, _, body := addEntity(t, w, dynamicBox(props))

	w.StepSimulation(1)
	assert.True(t, body.IsActive())

	w.StepSimulation(1.1)
	assert.False(t, body.IsActive())
	assert.Equal(t, mgl64.Vec3{}, e.Velocity())
}

func TestWorld_RequestDeactivation(t *testing.T) {
	w := New(DefaultConfig())
	var props core.EntityProperties
	props.SetVelocity(mgl64.Vec3{3, 0, 0})
	_, _, body := addEntity(t, w, dynamicBox(props))

	body.RequestDeactivation()
	w.StepSimulation(physics.FixedSubstep)

	assert.False(t, body.IsActive())
	assert.Equal(t, mgl64.Vec3{}, body.LinearVelocity())

	body.Activate()
	assert.True(t, body.IsActive())
}

func TestWorld_DampingClamped(t *testing.T) {
	var b Body
	b.SetDamping(-1, 2)

	assert.Equal(t, 0.0, b.LinearDamping())
	assert.Equal(t, 1.0, b.AngularDamping())
}

func TestWorld_RemoveObject(t *testing.T) {
	w := New(DefaultConfig())
	_, b, _ := addEntity(t, w, dynamicBox(core.EntityProperties{}))

	w.RemoveObject(b)

	assert.Equal(t, 0, w.NumBodies())
	assert.Nil(t, b.Body())
}

func TestWorld_Collisions(t *testing.T) {
	w := New(DefaultConfig())
	var left, right core.EntityProperties
	left.SetPosition(mgl64.Vec3{0, 0, 0})
	right.SetPosition(mgl64.Vec3{1, 0, 0})
	_, a, _ := addEntity(t, w, dynamicBox(left))
	_, b, bodyB := addEntity(t, w, dynamicBox(right))

	events := w.Collisions()
	require.Len(t, events, 1)
	assert.Equal(t, ContactStart, events[0].Type)
	assert.Same(t, a, events[0].A)
	assert.Same(t, b, events[0].B)

	events = w.Collisions()
	require.Len(t, events, 1)
	assert.Equal(t, ContactContinue, events[0].Type)

	bodyB.SetWorldTransform(physics.Transform{Origin: mgl64.Vec3{10, 0, 0}, Rotation: mgl64.QuatIdent()})
	events = w.Collisions()
	require.Len(t, events, 1)
	assert.Equal(t, ContactEnd, events[0].Type)
	assert.Empty(t, w.Collisions())
}

func TestWorld_WorldOffset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorldOffset = mgl64.Vec3{100, 0, 0}
	w := New(cfg)
	var props core.EntityProperties
	props.SetPosition(mgl64.Vec3{101, 0, 0})
	props.SetVelocity(mgl64.Vec3{1, 0, 0})

	e, _, body := addEntity(t, w, dynamicBox(props))
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, body.WorldTransform().Origin)

	w.StepSimulation(physics.FixedSubstep)
	assert.InDelta(t, 101+physics.FixedSubstep, e.Position().X(), 1e-9)
}
