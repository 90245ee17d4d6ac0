package shape

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DefaultMargin is the engine's default collision margin for convex shapes.
	DefaultMargin = 0.04
	// MinMargin is the smallest margin a convex hull is shrunk to.
	MinMargin = 0.01
)

// CollisionShape is an engine-side collision shape.
type CollisionShape interface {
	Type() Type
	HalfExtents() mgl64.Vec3
	Margin() float64
}

type BoxShape struct {
	halfExtents mgl64.Vec3
}

func (s *BoxShape) Type() Type              { return TypeBox }
func (s *BoxShape) HalfExtents() mgl64.Vec3 { return s.halfExtents }
func (s *BoxShape) Margin() float64         { return DefaultMargin }

type SphereShape struct {
	Radius float64
}

func (s *SphereShape) Type() Type { return TypeSphere }
func (s *SphereShape) HalfExtents() mgl64.Vec3 {
	return mgl64.Vec3{s.Radius, s.Radius, s.Radius}
}

// Margin of a sphere is its radius; the whole shape is margin.
func (s *SphereShape) Margin() float64 { return s.Radius }

type CapsuleShape struct {
	Radius float64
	Height float64 // distance between hemisphere centers
}

func (s *CapsuleShape) Type() Type { return TypeCapsuleY }
func (s *CapsuleShape) HalfExtents() mgl64.Vec3 {
	return mgl64.Vec3{s.Radius, 0.5 * s.Height, s.Radius}
}
func (s *CapsuleShape) Margin() float64 { return s.Radius }

// ConvexHull is a convex point set whose points have been pulled in toward
// the centroid so that the margin surface sits near the visible surface.
type ConvexHull struct {
	points []mgl64.Vec3
	margin float64
	lo, hi mgl64.Vec3
}

func (h *ConvexHull) Type() Type { return TypeCompound }

// HalfExtents includes the margin.
func (h *ConvexHull) HalfExtents() mgl64.Vec3 {
	return h.hi.Sub(h.lo).Mul(0.5).Add(mgl64.Vec3{h.margin, h.margin, h.margin})
}

func (h *ConvexHull) Margin() float64 { return h.margin }

// Points returns the margin-corrected hull points.
func (h *ConvexHull) Points() []mgl64.Vec3 { return h.points }

// LocalBounds returns the AABB of the corrected points without margin.
func (h *ConvexHull) LocalBounds() (lo, hi mgl64.Vec3) { return h.lo, h.hi }

// CompoundShape holds several convex hulls with identity child transforms.
type CompoundShape struct {
	Children []*ConvexHull
}

func (c *CompoundShape) Type() Type { return TypeCompound }

func (c *CompoundShape) HalfExtents() mgl64.Vec3 {
	if len(c.Children) == 0 {
		return mgl64.Vec3{}
	}
	lo, hi := c.bounds()
	return hi.Sub(lo).Mul(0.5)
}

func (c *CompoundShape) Margin() float64 {
	m := DefaultMargin
	for _, child := range c.Children {
		m = math.Min(m, child.margin)
	}
	return m
}

func (c *CompoundShape) bounds() (lo, hi mgl64.Vec3) {
	for i, child := range c.Children {
		m := mgl64.Vec3{child.margin, child.margin, child.margin}
		l, h := child.lo.Sub(m), child.hi.Add(m)
		if i == 0 {
			lo, hi = l, h
			continue
		}
		lo = minVec(lo, l)
		hi = maxVec(hi, h)
	}
	return lo, hi
}

// NewConvexHull builds a hull from points. The margin is clamped to half
// the smallest bounding-box dimension, floored at MinMargin and capped at
// DefaultMargin, and points are scaled toward the centroid to compensate.
// An axis thinner than 2*MinMargin gets a negative scale, so its points are
// mirrored through the centroid and may leave the input bounding box.
// points must be non-empty.
func NewConvexHull(points []mgl64.Vec3) *ConvexHull {
	if len(points) == 0 {
		panic("shape: convex hull requires at least one point")
	}

	center := points[0]
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		center = center.Add(p)
		lo = minVec(lo, p)
		hi = maxVec(hi, p)
	}
	center = center.Mul(1.0 / float64(len(points)))

	diagonal := hi.Sub(lo)
	minDimension := math.Min(math.Min(diagonal[0], diagonal[1]), diagonal[2])
	margin := math.Min(math.Max(0.5*minDimension, MinMargin), DefaultMargin)

	var scale mgl64.Vec3
	for i := 0; i < 3; i++ {
		if diagonal[i] > 0 {
			scale[i] = (diagonal[i] - 2.0*margin) / diagonal[i]
		} else {
			// flat along this axis; nothing to shrink
			scale[i] = 1
		}
	}

	h := &ConvexHull{
		points: make([]mgl64.Vec3, len(points)),
		margin: margin,
	}
	for i, p := range points {
		rel := p.Sub(center)
		corrected := mgl64.Vec3{
			rel[0]*scale[0] + center[0],
			rel[1]*scale[1] + center[1],
			rel[2]*scale[2] + center[2],
		}
		h.points[i] = corrected
		if i == 0 {
			h.lo, h.hi = corrected, corrected
			continue
		}
		h.lo = minVec(h.lo, corrected)
		h.hi = maxVec(h.hi, corrected)
	}
	return h
}

// Build converts a descriptor into a collision shape. It returns nil for
// TypeNone or unknown types.
func Build(d Descriptor) CollisionShape {
	switch d.Type {
	case TypeBox:
		return &BoxShape{halfExtents: d.HalfExtents}
	case TypeSphere:
		return &SphereShape{Radius: d.HalfExtents[0]}
	case TypeCapsuleY:
		return &CapsuleShape{Radius: d.HalfExtents[0], Height: 2.0 * d.HalfExtents[1]}
	case TypeCompound:
		switch d.NumSubShapes() {
		case 0:
			return nil
		case 1:
			return NewConvexHull(d.Points[0])
		default:
			compound := &CompoundShape{Children: make([]*ConvexHull, 0, d.NumSubShapes())}
			for _, pts := range d.Points {
				compound.Children = append(compound.Children, NewConvexHull(pts))
			}
			return compound
		}
	}
	return nil
}
