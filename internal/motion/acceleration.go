package motion

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/openworld/physync/internal/physics"
)

const (
	// AccelerationEquivalentEpsilonRatio is the relative band around the
	// gravity magnitude that counts as free fall.
	AccelerationEquivalentEpsilonRatio = 0.1
	// StepsToDecideBallistic is how many near-gravity measurements in a row
	// make a body ballistic.
	StepsToDecideBallistic = 4
)

// AccelerationSample measures the true acceleration of a body between
// post-step reports.
type AccelerationSample struct {
	Measured      mgl64.Vec3
	lastVelocity  mgl64.Vec3
	lastStep      uint32
	nearlyGravity uint8
}

// Reset restarts measuring from the given step and velocity.
func (s *AccelerationSample) Reset(step uint32, velocity mgl64.Vec3) {
	s.lastStep = step
	s.lastVelocity = velocity
	s.Measured = mgl64.Vec3{}
	s.nearlyGravity = 0
}

// Measure derives acceleration from the velocity change since the last
// measurement, undoing the engine's damping: a = (v1/(1-D)^dt - v0)/dt.
// It reports false when no substep has elapsed.
func (s *AccelerationSample) Measure(step uint32, velocity mgl64.Vec3, linearDamping float64) bool {
	numSubsteps := step - s.lastStep
	if numSubsteps == 0 {
		return false
	}
	dt := float64(numSubsteps) * physics.FixedSubstep
	s.lastStep = step
	s.Measured = velocity.Mul(1.0 / physics.DampingFactor(linearDamping, dt)).Sub(s.lastVelocity).Mul(1.0 / dt)
	s.lastVelocity = velocity
	return true
}

// UpdateGravityStreak compares the last measurement with the magnitude of
// gravity. Only magnitudes are compared, so sideways acceleration of the
// same size counts as free fall.
func (s *AccelerationSample) UpdateGravityStreak(gravity mgl64.Vec3) {
	gravityLength := gravity.Len()
	accVsGravity := math.Abs(s.Measured.Len() - gravityLength)
	if accVsGravity < AccelerationEquivalentEpsilonRatio*gravityLength {
		if s.nearlyGravity < StepsToDecideBallistic {
			s.nearlyGravity++
		}
		return
	}
	s.nearlyGravity = 0
}

// IsBallistic reports whether the body has been in free fall long enough
// for the server to extrapolate with gravity.
func (s *AccelerationSample) IsBallistic() bool {
	return s.nearlyGravity >= StepsToDecideBallistic
}
