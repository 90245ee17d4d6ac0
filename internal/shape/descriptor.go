// Package shape describes collision shapes and builds engine shapes from
// those descriptions.
package shape

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl64"
)

// Type is the kind of collision shape.
type Type uint8

const (
	TypeNone Type = iota
	TypeBox
	TypeSphere
	TypeCapsuleY
	TypeCompound
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeBox:
		return "box"
	case TypeSphere:
		return "sphere"
	case TypeCapsuleY:
		return "capsule-y"
	case TypeCompound:
		return "compound"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ParseType converts a name produced by Type.String back into a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "box":
		return TypeBox, nil
	case "sphere":
		return TypeSphere, nil
	case "capsule-y", "capsule":
		return TypeCapsuleY, nil
	case "compound", "hull":
		return TypeCompound, nil
	case "", "none":
		return TypeNone, nil
	default:
		return TypeNone, fmt.Errorf("unknown shape type: %s", s)
	}
}

// Descriptor is the sole input for building a collision shape.
type Descriptor struct {
	Type        Type
	HalfExtents mgl64.Vec3
	// Points holds one point cloud per convex sub-shape (compound only).
	Points [][]mgl64.Vec3
}

// Box describes an axis-aligned box.
func Box(halfExtents mgl64.Vec3) Descriptor {
	return Descriptor{Type: TypeBox, HalfExtents: halfExtents}
}

// Sphere describes a sphere.
func Sphere(radius float64) Descriptor {
	return Descriptor{Type: TypeSphere, HalfExtents: mgl64.Vec3{radius, radius, radius}}
}

// CapsuleY describes a Y-aligned capsule. halfHeight is half the distance
// between the two hemisphere centers.
func CapsuleY(radius, halfHeight float64) Descriptor {
	return Descriptor{Type: TypeCapsuleY, HalfExtents: mgl64.Vec3{radius, halfHeight, radius}}
}

// Compound describes a set of convex hulls. Every point list must be
// non-empty.
func Compound(points ...[]mgl64.Vec3) Descriptor {
	d := Descriptor{Type: TypeCompound, Points: points}
	if len(points) > 0 {
		lo, hi := bounds(points[0])
		for _, pts := range points[1:] {
			l, h := bounds(pts)
			lo = minVec(lo, l)
			hi = maxVec(hi, h)
		}
		d.HalfExtents = hi.Sub(lo).Mul(0.5)
	}
	return d
}

// NumSubShapes is the number of convex hulls in a compound descriptor.
func (d Descriptor) NumSubShapes() int {
	return len(d.Points)
}

// Hash is a stable 64-bit key for the descriptor's geometry.
func (d Descriptor) Hash() uint64 {
	h := xxhash.New()
	var buf [8]byte
	writeFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		_, _ = h.Write(buf[:])
	}

	_, _ = h.Write([]byte{byte(d.Type)})
	for i := 0; i < 3; i++ {
		writeFloat(d.HalfExtents[i])
	}
	for _, pts := range d.Points {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(pts)))
		_, _ = h.Write(buf[:])
		for _, p := range pts {
			writeFloat(p[0])
			writeFloat(p[1])
			writeFloat(p[2])
		}
	}
	return h.Sum64()
}

func bounds(points []mgl64.Vec3) (lo, hi mgl64.Vec3) {
	if len(points) == 0 {
		return lo, hi
	}
	lo, hi = points[0], points[0]
	for _, p := range points[1:] {
		lo = minVec(lo, p)
		hi = maxVec(hi, p)
	}
	return lo, hi
}

func minVec(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])}
}

func maxVec(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])}
}
