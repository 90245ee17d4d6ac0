// Package engine is a small deterministic rigid-body world with a fixed
// substep. It integrates gravity, damping and rotation the same way the
// motion bridge predicts them and reports contacts, but does not resolve
// collisions.
package engine

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/openworld/physync/internal/physics"
	"github.com/openworld/physync/internal/shape"
	"github.com/openworld/physync/pkg/core"
)

// Object is what the world needs from the motion state of a body.
type Object interface {
	physics.MotionState
	Shape() shape.CollisionShape
	ComputeMotionType() core.MotionType
	SetMotionType(m core.MotionType)
	SetBody(b physics.Body)
}

type Config struct {
	MaxSubsteps           int
	LinearSleepThreshold  float64
	AngularSleepThreshold float64
	DeactivationTime      float64
	WorldOffset           mgl64.Vec3
}

func DefaultConfig() Config {
	return Config{
		MaxSubsteps:           6,
		LinearSleepThreshold:  0.05,
		AngularSleepThreshold: 0.087266,
		DeactivationTime:      2.0,
	}
}

// ContactType is the lifecycle stage of a contact between two bodies.
type ContactType uint8

const (
	ContactStart ContactType = iota
	ContactContinue
	ContactEnd
)

func (c ContactType) String() string {
	switch c {
	case ContactStart:
		return "start"
	case ContactContinue:
		return "continue"
	default:
		return "end"
	}
}

// Collision is a contact report between two objects.
type Collision struct {
	Type  ContactType
	A, B  Object
	Point mgl64.Vec3
}

type pairKey struct {
	a, b *Body
}

type World struct {
	cfg         Config
	bodies      []*Body
	step        uint32
	accumulator float64

	changed  []physics.MotionState
	contacts map[pairKey]bool
}

var _ physics.World = (*World)(nil)

func New(cfg Config) *World {
	if cfg.MaxSubsteps <= 0 {
		cfg.MaxSubsteps = 1
	}
	return &World{
		cfg:      cfg,
		contacts: make(map[pairKey]bool),
	}
}

// SimulationStep is the number of substeps taken so far.
func (w *World) SimulationStep() uint32  { return w.step }
func (w *World) WorldOffset() mgl64.Vec3 { return w.cfg.WorldOffset }
func (w *World) NumBodies() int          { return len(w.bodies) }

// AddObject creates a body for o, classifies it and reads its initial
// transform.
func (w *World) AddObject(o Object) *Body {
	b := &Body{
		object:         o,
		transform:      physics.IdentityTransform(),
		collisionShape: o.Shape(),
		mass:           1,
		active:         true,
	}
	o.SetBody(b)
	o.SetMotionType(o.ComputeMotionType())
	o.ReadWorldTransform(&b.transform)
	w.bodies = append(w.bodies, b)
	return b
}

// RemoveObject drops the body of o from the world.
func (w *World) RemoveObject(o Object) {
	for i, b := range w.bodies {
		if b.object != o {
			continue
		}
		w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
		for key := range w.contacts {
			if key.a == b || key.b == b {
				delete(w.contacts, key)
			}
		}
		o.SetBody(nil)
		return
	}
}

// ReinsertObject reclassifies o after a hard change.
func (w *World) ReinsertObject(o Object) {
	for _, b := range w.bodies {
		if b.object == o {
			b.collisionShape = o.Shape()
			b.Activate()
			o.ReadWorldTransform(&b.transform)
			return
		}
	}
}

// StepSimulation advances the world by dt seconds of wall time in fixed
// substeps and returns how many substeps were taken.
func (w *World) StepSimulation(dt float64) int {
	w.accumulator += dt
	numSubsteps := int(math.Floor(w.accumulator/physics.FixedSubstep + 1e-9))
	if numSubsteps > w.cfg.MaxSubsteps {
		numSubsteps = w.cfg.MaxSubsteps
		w.accumulator = 0
	} else {
		w.accumulator -= float64(numSubsteps) * physics.FixedSubstep
		if w.accumulator < 0 {
			w.accumulator = 0
		}
	}

	for i := 0; i < numSubsteps; i++ {
		w.step++
		w.substep(physics.FixedSubstep)
	}

	for _, b := range w.bodies {
		if b.moved && b.motionType == core.MotionDynamic {
			b.object.WriteWorldTransform(b.transform)
			w.changed = append(w.changed, b.object)
		}
		b.moved = false
	}
	return numSubsteps
}

func (w *World) substep(dt float64) {
	for _, b := range w.bodies {
		switch b.motionType {
		case core.MotionKinematic:
			b.object.ReadWorldTransform(&b.transform)
		case core.MotionDynamic:
			if b.active {
				w.integrate(b, dt)
			}
		}
	}
}

func (w *World) integrate(b *Body, dt float64) {
	b.linear = b.linear.Add(b.gravity.Mul(dt)).Mul(physics.DampingFactor(b.linearDamping, dt))
	b.angular = b.angular.Mul(physics.DampingFactor(b.angularDamping, dt))

	b.transform.Origin = b.transform.Origin.Add(b.linear.Mul(dt))
	if physics.LengthSquared(b.angular) > 0 {
		b.transform.Rotation = physics.RotationStep(b.angular, dt).Mul(b.transform.Rotation).Normalize()
	}
	b.moved = true

	slow := b.linear.Len() < w.cfg.LinearSleepThreshold && b.angular.Len() < w.cfg.AngularSleepThreshold
	if slow {
		b.idleTime += dt
	} else {
		b.idleTime = 0
	}
	if b.wantsDeactivation || (slow && b.idleTime > w.cfg.DeactivationTime) {
		b.active = false
		b.wantsDeactivation = false
		b.linear = mgl64.Vec3{}
		b.angular = mgl64.Vec3{}
	}
}

// ChangedMotionStates returns the motion states written back since the
// last call and resets the list.
func (w *World) ChangedMotionStates() []physics.MotionState {
	changed := w.changed
	w.changed = nil
	return changed
}

// Collisions reports contacts between bounding spheres since the last
// call. Static pairs are skipped.
func (w *World) Collisions() []Collision {
	var events []Collision
	seen := make(map[pairKey]bool, len(w.contacts))

	for i := 0; i < len(w.bodies); i++ {
		for j := i + 1; j < len(w.bodies); j++ {
			a, b := w.bodies[i], w.bodies[j]
			if a.motionType == core.MotionStatic && b.motionType == core.MotionStatic {
				continue
			}
			ra, rb := a.boundingRadius(), b.boundingRadius()
			if ra == 0 || rb == 0 {
				continue
			}
			d := b.transform.Origin.Sub(a.transform.Origin)
			if d.Len() >= ra+rb {
				continue
			}

			key := pairKey{a, b}
			seen[key] = true
			typ := ContactContinue
			if !w.contacts[key] {
				typ = ContactStart
				w.contacts[key] = true
			}
			point := a.transform.Origin.Add(d.Mul(ra / (ra + rb)))
			events = append(events, Collision{Type: typ, A: a.object, B: b.object, Point: point})
		}
	}

	for key := range w.contacts {
		if seen[key] {
			continue
		}
		delete(w.contacts, key)
		events = append(events, Collision{Type: ContactEnd, A: key.a.object, B: key.b.object})
	}
	return events
}
