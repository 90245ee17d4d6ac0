package motion

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/openworld/physync/internal/physics"
)

// RemoteState is what we believe the entity server currently knows about a
// body, in simulation frame. LastStep == 0 means nothing is known yet.
type RemoteState struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Acceleration    mgl64.Vec3
	LastStep        uint32
}

// Initialized reports whether a step has been observed.
func (r *RemoteState) Initialized() bool {
	return r.LastStep != 0
}

// Bootstrap takes the belief straight from the body.
func (r *RemoteState) Bootstrap(body physics.Body, step uint32) {
	t := body.WorldTransform()
	r.Position = t.Origin
	r.Rotation = t.Rotation
	r.Velocity = body.LinearVelocity()
	r.AngularVelocity = body.AngularVelocity()
	r.LastStep = step
}

// ExtrapolateLinear advances position and velocity by dt seconds the way
// the remote simulation would. Nothing moves if the remote velocity is zero.
func (r *RemoteState) ExtrapolateLinear(dt, linearDamping float64) {
	if physics.LengthSquared(r.Velocity) > 0 {
		r.Velocity = r.Velocity.Add(r.Acceleration.Mul(dt))
		r.Velocity = r.Velocity.Mul(physics.DampingFactor(linearDamping, dt))
		r.Position = r.Position.Add(r.Velocity.Mul(dt))
	}
}

// ExtrapolateAngular damps the angular velocity over dt and then integrates
// the rotation substep by substep with the engine's own rotation step.
func (r *RemoteState) ExtrapolateAngular(numSteps int, dt, angularDamping float64) {
	if physics.LengthSquared(r.AngularVelocity) > 0 {
		r.AngularVelocity = r.AngularVelocity.Mul(physics.DampingFactor(angularDamping, dt))
		r.Rotation = physics.IntegrateRotation(r.Rotation, r.AngularVelocity, numSteps, physics.FixedSubstep)
	}
}
