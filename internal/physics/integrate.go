package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AngularMotionThreshold caps the rotation angle covered by one substep.
// The exponential-map approximation breaks down past it.
const AngularMotionThreshold = 0.25 * math.Pi

// DampingFactor returns the multiplicative velocity attenuation (1-D)^dt.
func DampingFactor(damping, dt float64) float64 {
	return math.Pow(1.0-damping, dt)
}

// RotationStep returns the incremental rotation the engine applies for one
// substep of length dt under angular velocity w. The effective angular speed
// is capped so that a single step never turns more than
// AngularMotionThreshold, which is why remote predictions must integrate
// step by step with this function instead of in one go.
func RotationStep(w mgl64.Vec3, dt float64) mgl64.Quat {
	angle := w.Len()
	if angle*dt > AngularMotionThreshold {
		angle = AngularMotionThreshold / dt
	}

	var axis mgl64.Vec3
	const epsilon = 0.001
	if angle < epsilon {
		// Taylor expansion of sin(angle*dt/2)/angle
		axis = w.Mul(0.5*dt - (dt*dt*dt)*(0.020833333333*angle*angle))
	} else {
		axis = w.Mul(math.Sin(0.5*angle*dt) / angle)
	}
	return mgl64.Quat{W: math.Cos(0.5 * angle * dt), V: axis}
}

// IntegrateRotation applies numSteps substeps of RotationStep to q,
// renormalizing after each one.
func IntegrateRotation(q mgl64.Quat, w mgl64.Vec3, numSteps int, dt float64) mgl64.Quat {
	for i := 0; i < numSteps; i++ {
		q = RotationStep(w, dt).Mul(q).Normalize()
	}
	return q
}

// LengthSquared returns |v|^2.
func LengthSquared(v mgl64.Vec3) float64 {
	return v.Dot(v)
}

// DistanceSquared returns |a-b|^2.
func DistanceSquared(a, b mgl64.Vec3) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}
