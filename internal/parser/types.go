package parser

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/openworld/physync/internal/entity"
	"github.com/openworld/physync/internal/shape"
	"github.com/openworld/physync/pkg/core"
)

// ShapeSpec is the wire and file form of a shape descriptor.
type ShapeSpec struct {
	Type        string         `json:"type" yaml:"type"`
	HalfExtents []float64      `json:"halfExtents,omitempty" yaml:"halfExtents,omitempty"`
	Radius      float64        `json:"radius,omitempty" yaml:"radius,omitempty"`
	HalfHeight  float64        `json:"halfHeight,omitempty" yaml:"halfHeight,omitempty"`
	Points      [][][3]float64 `json:"points,omitempty" yaml:"points,omitempty"`
}

// Descriptor converts the parsed shape into a descriptor. A compound without
// points yields a descriptor that is not ready to build yet.
func (s ShapeSpec) Descriptor() (shape.Descriptor, error) {
	t, err := shape.ParseType(s.Type)
	if err != nil {
		return shape.Descriptor{}, err
	}

	switch t {
	case shape.TypeNone:
		return shape.Descriptor{}, nil
	case shape.TypeBox:
		if len(s.HalfExtents) != 3 {
			return shape.Descriptor{}, fmt.Errorf("box needs 3 half extents, got %d", len(s.HalfExtents))
		}
		return shape.Box(mgl64.Vec3{s.HalfExtents[0], s.HalfExtents[1], s.HalfExtents[2]}), nil
	case shape.TypeSphere:
		if s.Radius <= 0 {
			return shape.Descriptor{}, fmt.Errorf("sphere radius must be positive, got %v", s.Radius)
		}
		return shape.Sphere(s.Radius), nil
	case shape.TypeCapsuleY:
		if s.Radius <= 0 || s.HalfHeight < 0 {
			return shape.Descriptor{}, fmt.Errorf("invalid capsule radius %v half height %v", s.Radius, s.HalfHeight)
		}
		return shape.CapsuleY(s.Radius, s.HalfHeight), nil
	default:
		if len(s.Points) == 0 {
			return shape.Descriptor{Type: shape.TypeCompound}, nil
		}
		hulls := make([][]mgl64.Vec3, 0, len(s.Points))
		for i, pts := range s.Points {
			if len(pts) == 0 {
				return shape.Descriptor{}, fmt.Errorf("hull %d has no points", i)
			}
			hull := make([]mgl64.Vec3, len(pts))
			for j, p := range pts {
				hull[j] = mgl64.Vec3(p)
			}
			hulls = append(hulls, hull)
		}
		return shape.Compound(hulls...), nil
	}
}

// EntitySpec is the payload of an entity:add notification.
type EntitySpec struct {
	ID            string                `json:"id" yaml:"id"`
	Name          string                `json:"name" yaml:"name"`
	Shape         ShapeSpec             `json:"shape" yaml:"shape"`
	Mass          float64               `json:"mass" yaml:"mass"`
	Dynamic       bool                  `json:"dynamic" yaml:"dynamic"`
	Collisionless bool                  `json:"collisionless" yaml:"collisionless"`
	Properties    core.EntityProperties `json:"properties" yaml:"-"`
}

// Definition converts the payload into an entity definition. An empty ID
// gets a fresh one.
func (s EntitySpec) Definition() (entity.Definition, error) {
	var def entity.Definition
	if s.ID != "" {
		id, err := core.ParseEntityID(s.ID)
		if err != nil {
			return def, fmt.Errorf("entity id: %w", err)
		}
		def.ID = id
	}
	d, err := s.Shape.Descriptor()
	if err != nil {
		return def, fmt.Errorf("entity %q shape: %w", s.Name, err)
	}
	if s.Mass < 0 {
		return def, fmt.Errorf("entity %q: negative mass %v", s.Name, s.Mass)
	}

	def.Name = s.Name
	def.Shape = d
	def.Mass = s.Mass
	def.Dynamic = s.Dynamic
	def.Collisionless = s.Collisionless
	def.Properties = s.Properties
	return def, nil
}

// ParsedEdit is an entity:edit notification: a server property set for one
// entity, stamped with the server step when known.
type ParsedEdit struct {
	EntityID   core.EntityID
	Step       uint32
	Properties core.EntityProperties
}
