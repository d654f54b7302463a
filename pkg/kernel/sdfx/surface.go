package sdfx

import (
	"fmt"

	"github.com/chazu/directshape/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	_ kernel.Body   = (*Surface)(nil)
	_ kernel.Scaler = (*Surface)(nil)
)

// Surface is a planar region bounded by a 2D SDF, lying in the plane
// z = origin.Z with its 2D origin at (origin.X, origin.Y).
type Surface struct {
	s      sdf.SDF2
	origin r3.Vec
	cells  int
}

// Rectangle creates an x by y planar rectangle centered at the origin.
func (k *SdfxKernel) Rectangle(x, y float64) *Surface {
	return &Surface{s: sdf.Box2D(v2.Vec{X: x, Y: y}, 0), cells: k.cells}
}

// Disc creates a planar disc centered at the origin.
func (k *SdfxKernel) Disc(radius float64) *Surface {
	s, err := sdf.Circle2D(radius)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Circle2D: %v", err))
	}
	return &Surface{s: s, cells: k.cells}
}

// Kind returns KindSurface.
func (s *Surface) Kind() kernel.Kind { return kernel.KindSurface }

// BoundingBox returns the flat box of the region at its elevation.
func (s *Surface) BoundingBox() (r3.Box, error) {
	bb := s.s.BoundingBox()
	out := r3.Box{
		Min: r3.Vec{X: bb.Min.X + s.origin.X, Y: bb.Min.Y + s.origin.Y, Z: s.origin.Z},
		Max: r3.Vec{X: bb.Max.X + s.origin.X, Y: bb.Max.Y + s.origin.Y, Z: s.origin.Z},
	}
	if !kernel.ValidBox(out) {
		return r3.Box{}, fmt.Errorf("sdfx: invalid surface bounds %v: %w", out, kernel.ErrDegenerate)
	}
	return out, nil
}

// Centroid returns the area centroid estimated on a cells x cells grid.
func (s *Surface) Centroid() (r3.Vec, error) {
	var sum v2.Vec
	n := 0
	s.eachInsideCell(func(c v2.Vec, _ v2.Vec) {
		sum.X += c.X
		sum.Y += c.Y
		n++
	})
	if n == 0 {
		return r3.Vec{}, fmt.Errorf("sdfx: surface has no area: %w", kernel.ErrDegenerate)
	}
	return r3.Vec{
		X: sum.X/float64(n) + s.origin.X,
		Y: sum.Y/float64(n) + s.origin.Y,
		Z: s.origin.Z,
	}, nil
}

// Translate returns a copy moved by v.
func (s *Surface) Translate(v r3.Vec) kernel.Body {
	return &Surface{s: s.s, origin: r3.Add(s.origin, v), cells: s.cells}
}

// Scale returns a copy uniformly scaled about the origin.
func (s *Surface) Scale(f float64) kernel.Body {
	return &Surface{
		s:      sdf.Transform2D(s.s, sdf.Scale2d(v2.Vec{X: f, Y: f})),
		origin: r3.Scale(f, s.origin),
		cells:  s.cells,
	}
}

// eachInsideCell calls fn with the center and half-size of every grid cell
// whose center lies inside the region.
func (s *Surface) eachInsideCell(fn func(center, half v2.Vec)) {
	bb := s.s.BoundingBox()
	n := s.cells
	if n <= 0 {
		n = DefaultMeshCells
	}
	dx := (bb.Max.X - bb.Min.X) / float64(n)
	dy := (bb.Max.Y - bb.Min.Y) / float64(n)
	half := v2.Vec{X: dx / 2, Y: dy / 2}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			c := v2.Vec{X: bb.Min.X + (float64(i)+0.5)*dx, Y: bb.Min.Y + (float64(j)+0.5)*dy}
			if s.s.Evaluate(c) <= 0 {
				fn(c, half)
			}
		}
	}
}

// triangulate emits two upward-facing triangles per inside grid cell.
func (s *Surface) triangulate() (*kernel.Mesh, error) {
	m := &kernel.Mesh{}
	z := float32(s.origin.Z)
	s.eachInsideCell(func(c, h v2.Vec) {
		x0, x1 := float32(c.X-h.X+s.origin.X), float32(c.X+h.X+s.origin.X)
		y0, y1 := float32(c.Y-h.Y+s.origin.Y), float32(c.Y+h.Y+s.origin.Y)
		base := uint32(m.VertexCount())
		m.Vertices = append(m.Vertices,
			x0, y0, z,
			x1, y0, z,
			x1, y1, z,
			x0, y1, z,
		)
		for k := 0; k < 4; k++ {
			m.Normals = append(m.Normals, 0, 0, 1)
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	})
	if m.IsEmpty() {
		return nil, fmt.Errorf("sdfx: surface has no area: %w", kernel.ErrDegenerate)
	}
	return m, nil
}
