package motion

import (
	"math"

	"github.com/openworld/physync/internal/physics"
)

const (
	// InactiveUpdatePeriod is how often, in simulated seconds, an update
	// saying the body stopped is resent.
	InactiveUpdatePeriod = 0.5
	// MaxPositionErrorSquared is about 3 cm.
	MaxPositionErrorSquared = 0.001
	// MinRotationDot is about 16 degrees of slop.
	MinRotationDot = 0.99
)

func positionOutOfSync(dx2 float64) bool {
	return dx2 > MaxPositionErrorSquared
}

func rotationOutOfSync(dot float64) bool {
	return math.Abs(dot) < MinRotationDot
}

// RemoteSimulationOutOfSync reports whether the body has drifted far enough
// from what the server is predicted to know that an update is needed. It
// advances the remote belief as a side effect.
func (b *Bridge) RemoteSimulationOutOfSync(step uint32) bool {
	if b.body == nil {
		return false
	}

	if !b.remote.Initialized() {
		b.remote.Bootstrap(b.body, step)
		b.sentActive = false
		return false
	}

	numSteps := int(step - b.remote.LastStep)
	dt := float64(numSteps) * physics.FixedSubstep

	if !b.sentActive {
		// keep resending the stop until it is no longer needed
		return dt >= InactiveUpdatePeriod
	}

	if !b.body.IsActive() {
		// last send was moving and the body stopped since
		return true
	}

	b.remote.LastStep = step
	b.remote.ExtrapolateLinear(dt, b.body.LinearDamping())

	actual := b.body.WorldTransform()
	if positionOutOfSync(physics.DistanceSquared(actual.Origin, b.remote.Position)) {
		return true
	}

	b.remote.ExtrapolateAngular(numSteps, dt, b.body.AngularDamping())
	return rotationOutOfSync(actual.Rotation.Dot(b.remote.Rotation))
}
