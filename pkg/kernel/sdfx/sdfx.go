// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"
	"math"
	"sync"

	"github.com/chazu/directshape/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compile-time interface checks.
var (
	_ kernel.Kernel = (*SdfxKernel)(nil)
	_ kernel.Body   = (*sdfxSolid)(nil)
	_ kernel.Scaler = (*sdfxSolid)(nil)
)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 200

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Body.
//
// A solid produced by translation remembers its untranslated parent so its
// centroid is derived exactly instead of being re-tessellated.
type sdfxSolid struct {
	s      sdf.SDF3
	cells  int
	parent *sdfxSolid
	offset r3.Vec

	once     sync.Once
	centroid r3.Vec
	err      error
}

func (s *sdfxSolid) Kind() kernel.Kind { return kernel.KindSolid }

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (r3.Box, error) {
	bb := s.s.BoundingBox()
	out := r3.Box{Min: fromV3(bb.Min), Max: fromV3(bb.Max)}
	if !kernel.ValidBox(out) {
		return r3.Box{}, fmt.Errorf("sdfx: invalid bounding box %v: %w", out, kernel.ErrDegenerate)
	}
	return out, nil
}

// Centroid returns the volume centroid of the marching-cubes tessellation.
func (s *sdfxSolid) Centroid() (r3.Vec, error) {
	if s.parent != nil {
		c, err := s.parent.Centroid()
		if err != nil {
			return r3.Vec{}, err
		}
		return r3.Add(c, s.offset), nil
	}
	s.once.Do(func() {
		s.centroid, s.err = meshCentroid(s.s, s.cells)
	})
	return s.centroid, s.err
}

// Translate returns a new solid moved by v.
func (s *sdfxSolid) Translate(v r3.Vec) kernel.Body {
	root, offset := s, v
	if s.parent != nil {
		root, offset = s.parent, r3.Add(s.offset, v)
	}
	return &sdfxSolid{
		s:      sdf.Transform3D(s.s, sdf.Translate3d(toV3(v))),
		cells:  s.cells,
		parent: root,
		offset: offset,
	}
}

// Scale returns a new solid uniformly scaled about the origin.
func (s *sdfxSolid) Scale(f float64) kernel.Body {
	return &sdfxSolid{s: sdf.ScaleUniform3D(s.s, f), cells: s.cells}
}

// meshCentroid tessellates s and integrates signed tetrahedra against the
// bounding box center.
func meshCentroid(s sdf.SDF3, cells int) (r3.Vec, error) {
	triangles := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))
	if len(triangles) == 0 {
		return r3.Vec{}, fmt.Errorf("sdfx: empty tessellation: %w", kernel.ErrDegenerate)
	}
	bb := s.BoundingBox()
	ref := kernel.Center(r3.Box{Min: fromV3(bb.Min), Max: fromV3(bb.Max)})

	var sum r3.Vec
	var vol float64
	for _, tri := range triangles {
		a := r3.Sub(fromV3(tri[0]), ref)
		b := r3.Sub(fromV3(tri[1]), ref)
		c := r3.Sub(fromV3(tri[2]), ref)
		v := r3.Dot(a, r3.Cross(b, c)) / 6
		sum = r3.Add(sum, r3.Scale(v/4, r3.Add(r3.Add(a, b), c)))
		vol += v
	}
	if vol == 0 || math.IsNaN(vol) {
		return r3.Vec{}, fmt.Errorf("sdfx: zero volume: %w", kernel.ErrDegenerate)
	}
	return r3.Add(ref, r3.Scale(1/vol, sum)), nil
}

// Option configures an SdfxKernel.
type Option func(*SdfxKernel)

// WithMeshCells sets the marching cubes resolution along the longest axis.
func WithMeshCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.cells = n
		}
	}
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	cells int
}

// New returns a new SdfxKernel.
func New(opts ...Option) *SdfxKernel {
	k := &SdfxKernel{cells: DefaultMeshCells}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// MeshCells reports the configured tessellation resolution.
func (k *SdfxKernel) MeshCells() int { return k.cells }

// unwrap extracts the underlying sdf.SDF3 from a kernel.Body.
func unwrap(b kernel.Body) sdf.SDF3 {
	s, ok := b.(*sdfxSolid)
	if !ok {
		panic(fmt.Sprintf("sdfx: body %T was not created by this kernel", b))
	}
	return s.s
}

// wrap creates a kernel.Body from an sdf.SDF3.
func (k *SdfxKernel) wrap(s sdf.SDF3) kernel.Body {
	return &sdfxSolid{s: s, cells: k.cells}
}

// Box creates a box with the given dimensions, centered at the origin.
func (k *SdfxKernel) Box(x, y, z float64) kernel.Body {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Box3D: %v", err))
	}
	return k.wrap(s)
}

// Sphere creates a sphere centered at the origin.
func (k *SdfxKernel) Sphere(radius float64) kernel.Body {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Sphere3D: %v", err))
	}
	return k.wrap(s)
}

// Cylinder creates a cylinder along Z with the given height and radius,
// centered at the origin. The segments parameter is ignored since SDF
// represents smooth surfaces.
func (k *SdfxKernel) Cylinder(height, radius float64, segments int) kernel.Body {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Cylinder3D: %v", err))
	}
	return k.wrap(s)
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Body) kernel.Body {
	return k.wrap(sdf.Union3D(unwrap(a), unwrap(b)))
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Body) kernel.Body {
	return k.wrap(sdf.Difference3D(unwrap(a), unwrap(b)))
}

// Intersection returns the intersection of two solids.
func (k *SdfxKernel) Intersection(a, b kernel.Body) kernel.Body {
	return k.wrap(sdf.Intersect3D(unwrap(a), unwrap(b)))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *SdfxKernel) Rotate(b kernel.Body, x, y, z float64) kernel.Body {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return k.wrap(sdf.Transform3D(unwrap(b), m))
}

// ToMesh converts a solid to a triangle mesh using marching cubes, or a
// planar surface to a grid triangulation.
func (k *SdfxKernel) ToMesh(b kernel.Body) (*kernel.Mesh, error) {
	switch v := b.(type) {
	case *sdfxSolid:
		return solidMesh(v.s, k.cells), nil
	case *Surface:
		return v.triangulate()
	default:
		return nil, fmt.Errorf("sdfx: cannot mesh %T", b)
	}
}

func solidMesh(sdf3 sdf.SDF3, cells int) *kernel.Mesh {
	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(sdf3, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Compute face normal.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}
}

func toV3(v r3.Vec) v3.Vec   { return v3.Vec{X: v.X, Y: v.Y, Z: v.Z} }
func fromV3(v v3.Vec) r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }
