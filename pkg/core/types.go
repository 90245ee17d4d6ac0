package core

import (
	"fmt"

	"github.com/google/uuid"
)

// SessionID identifies a participant in the distributed simulation.
// The nil UUID means "nobody".
type SessionID = uuid.UUID

// EntityID identifies an entity in the entity tree.
type EntityID = uuid.UUID

// NoSession is the simulator ID of an entity that nobody simulates.
var NoSession = uuid.Nil

// NewSessionID returns a fresh random session ID.
func NewSessionID() SessionID {
	return uuid.New()
}

// NewEntityID returns a fresh random entity ID.
func NewEntityID() EntityID {
	return uuid.New()
}

// ParseSessionID parses a session ID string. An empty string yields NoSession.
func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return NoSession, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return NoSession, fmt.Errorf("invalid session id %q: %w", s, err)
	}
	return id, nil
}

// ParseEntityID parses an entity ID string. Unlike session IDs it may not
// be empty.
func ParseEntityID(s string) (EntityID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return EntityID{}, fmt.Errorf("invalid entity id %q: %w", s, err)
	}
	return id, nil
}

// MotionType classifies how the physics engine treats a rigid body.
type MotionType uint8

const (
	MotionStatic MotionType = iota
	MotionDynamic
	MotionKinematic
)

func (m MotionType) String() string {
	switch m {
	case MotionStatic:
		return "static"
	case MotionDynamic:
		return "dynamic"
	case MotionKinematic:
		return "kinematic"
	default:
		return fmt.Sprintf("MotionType(%d)", uint8(m))
	}
}

// DirtyFlags records which aspects of an entity changed since the physics
// engine last looked at it.
type DirtyFlags uint32

const (
	DirtyPosition DirtyFlags = 1 << iota
	DirtyRotation
	DirtyLinearVelocity
	DirtyAngularVelocity
	DirtyMass
	DirtyCollisionGroup
	DirtyMotionType
	DirtyShape
	DirtyLifetime
	DirtyUpdateable
	DirtyMaterial
	DirtyPhysicsActivation
	DirtySimulatorID
)

const (
	// DirtyTransform covers position and rotation.
	DirtyTransform = DirtyPosition | DirtyRotation
	// DirtyVelocities covers linear and angular velocity.
	DirtyVelocities = DirtyLinearVelocity | DirtyAngularVelocity
	// DirtyHardFlags require the body to be rebuilt or reinserted.
	DirtyHardFlags = DirtyMotionType | DirtyShape | DirtyCollisionGroup
	// DirtyEasyFlags can be applied to a live body in place.
	DirtyEasyFlags = DirtyTransform | DirtyVelocities | DirtyMass | DirtyMaterial |
		DirtyPhysicsActivation | DirtySimulatorID | DirtyLifetime | DirtyUpdateable
)

// Has reports whether all bits in mask are set.
func (f DirtyFlags) Has(mask DirtyFlags) bool {
	return f&mask == mask
}

// Any reports whether any bit in mask is set.
func (f DirtyFlags) Any(mask DirtyFlags) bool {
	return f&mask != 0
}
