// Package kernel defines the abstract geometry kernel interface and the
// body types the rest of the system passes around. Implementations (sdfx)
// provide solid modeling behind this interface; the triangle mesh and
// polyline bodies here are kernel-independent and are what comes back from
// an interchange file.
package kernel

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

// Kind tags the geometric variant of a Body.
type Kind int

const (
	KindSolid   Kind = iota // closed volumetric body
	KindSurface             // bounded surface patch
	KindCurve               // curve or polyline
	KindMesh                // open triangle mesh
)

func (k Kind) String() string {
	switch k {
	case KindSolid:
		return "solid"
	case KindSurface:
		return "surface"
	case KindCurve:
		return "curve"
	case KindMesh:
		return "mesh"
	default:
		return "unknown"
	}
}

// ErrDegenerate is returned when a body has no extent or no measurable
// volume, area or length to derive a centroid from.
var ErrDegenerate = errors.New("kernel: degenerate geometry")

// Body is an immutable piece of geometry in a shared coordinate space.
type Body interface {
	// Kind reports which geometric variant the body is.
	Kind() Kind
	// Centroid returns the geometric center of mass.
	Centroid() (r3.Vec, error)
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (r3.Box, error)
	// Translate returns a new body moved by v. The receiver is unchanged.
	Translate(v r3.Vec) Body
}

// Scaler is implemented by bodies that can be uniformly scaled about the
// origin. Unit conversion requires it.
type Scaler interface {
	Scale(f float64) Body
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) Body
	Sphere(radius float64) Body
	Cylinder(height, radius float64, segments int) Body

	// Boolean operations
	Union(a, b Body) Body
	Difference(a, b Body) Body
	Intersection(a, b Body) Body

	// Transforms
	Rotate(b Body, x, y, z float64) Body // Euler angles in degrees

	// Mesh output. Only bodies created by this kernel are accepted.
	ToMesh(b Body) (*Mesh, error)
}

// UnionBox returns the bounding box enclosing every body. It fails on an
// empty list or on the first body whose box cannot be computed.
func UnionBox(bodies []Body) (r3.Box, error) {
	if len(bodies) == 0 {
		return r3.Box{}, ErrDegenerate
	}
	var out r3.Box
	for i, b := range bodies {
		if b == nil {
			return r3.Box{}, ErrDegenerate
		}
		bb, err := b.BoundingBox()
		if err != nil {
			return r3.Box{}, err
		}
		if i == 0 {
			out = bb
			continue
		}
		out = Extend(out, bb)
	}
	return out, nil
}
