// pkg/core/properties.go
package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// EntityProperties is a sparse property set. A nil field was not changed and
// is not transmitted; a set field is packed into the outgoing edit.
type EntityProperties struct {
	Name            *string     `json:"name,omitempty"`
	Position        *mgl64.Vec3 `json:"position,omitempty"`
	Rotation        *mgl64.Quat `json:"rotation,omitempty"`
	Velocity        *mgl64.Vec3 `json:"velocity,omitempty"`
	AngularVelocity *mgl64.Vec3 `json:"angularVelocity,omitempty"`
	Acceleration    *mgl64.Vec3 `json:"acceleration,omitempty"`
	Gravity         *mgl64.Vec3 `json:"gravity,omitempty"`
	LinearDamping   *float64    `json:"linearDamping,omitempty"`
	AngularDamping  *float64    `json:"angularDamping,omitempty"`
	SimulatorID     *SessionID  `json:"simulatorId,omitempty"`
	LastEdited      *time.Time  `json:"lastEdited,omitempty"`
}

func (p *EntityProperties) SetName(v string)                { p.Name = &v }
func (p *EntityProperties) SetPosition(v mgl64.Vec3)        { p.Position = &v }
func (p *EntityProperties) SetRotation(v mgl64.Quat)        { p.Rotation = &v }
func (p *EntityProperties) SetVelocity(v mgl64.Vec3)        { p.Velocity = &v }
func (p *EntityProperties) SetAngularVelocity(v mgl64.Vec3) { p.AngularVelocity = &v }
func (p *EntityProperties) SetAcceleration(v mgl64.Vec3)    { p.Acceleration = &v }
func (p *EntityProperties) SetGravity(v mgl64.Vec3)         { p.Gravity = &v }
func (p *EntityProperties) SetLinearDamping(v float64)      { p.LinearDamping = &v }
func (p *EntityProperties) SetAngularDamping(v float64)     { p.AngularDamping = &v }
func (p *EntityProperties) SetSimulatorID(v SessionID)      { p.SimulatorID = &v }
func (p *EntityProperties) SetLastEdited(v time.Time)       { p.LastEdited = &v }

// Empty reports whether no property is set.
func (p EntityProperties) Empty() bool {
	return p.Name == nil && p.Position == nil && p.Rotation == nil &&
		p.Velocity == nil && p.AngularVelocity == nil && p.Acceleration == nil &&
		p.Gravity == nil && p.LinearDamping == nil && p.AngularDamping == nil &&
		p.SimulatorID == nil && p.LastEdited == nil
}

// DirtyFlags returns the dirty bits an entity accumulates when these
// properties are applied to it.
func (p EntityProperties) DirtyFlags() DirtyFlags {
	var f DirtyFlags
	if p.Position != nil {
		f |= DirtyPosition
	}
	if p.Rotation != nil {
		f |= DirtyRotation
	}
	if p.Velocity != nil || p.Acceleration != nil || p.Gravity != nil || p.LinearDamping != nil {
		f |= DirtyLinearVelocity
	}
	if p.AngularVelocity != nil || p.AngularDamping != nil {
		f |= DirtyAngularVelocity
	}
	if p.SimulatorID != nil {
		f |= DirtySimulatorID
	}
	return f
}
