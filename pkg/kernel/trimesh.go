package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Compile-time interface checks.
var (
	_ Body   = (*TriangleMesh)(nil)
	_ Scaler = (*TriangleMesh)(nil)
)

// TriangleMesh is an indexed double-precision triangle mesh. A mesh whose
// every edge is shared by exactly two triangles is closed and reports
// KindSolid; otherwise it is an open KindMesh.
type TriangleMesh struct {
	vertices []r3.Vec
	faces    [][3]int
	closed   bool
}

// NewTriangleMesh builds a mesh from vertices and triangle index triples.
// Input slices are copied.
func NewTriangleMesh(vertices []r3.Vec, faces [][3]int) (*TriangleMesh, error) {
	for i, f := range faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(vertices) {
				return nil, fmt.Errorf("kernel: face %d references vertex %d of %d", i, idx, len(vertices))
			}
		}
	}
	m := &TriangleMesh{
		vertices: append([]r3.Vec(nil), vertices...),
		faces:    append([][3]int(nil), faces...),
	}
	m.closed = isClosed(m.faces)
	return m, nil
}

// isClosed reports whether every undirected edge appears in exactly two faces.
func isClosed(faces [][3]int) bool {
	if len(faces) == 0 {
		return false
	}
	type edge struct{ a, b int }
	counts := make(map[edge]int, len(faces)*3/2)
	for _, f := range faces {
		for j := 0; j < 3; j++ {
			a, b := f[j], f[(j+1)%3]
			if a > b {
				a, b = b, a
			}
			counts[edge{a, b}]++
		}
	}
	for _, n := range counts {
		if n != 2 {
			return false
		}
	}
	return true
}

// Kind returns KindSolid for closed meshes and KindMesh for open ones.
func (m *TriangleMesh) Kind() Kind {
	if m.closed {
		return KindSolid
	}
	return KindMesh
}

// Closed reports whether the mesh is watertight.
func (m *TriangleMesh) Closed() bool { return m.closed }

// Vertices returns a copy of the vertex positions.
func (m *TriangleMesh) Vertices() []r3.Vec { return append([]r3.Vec(nil), m.vertices...) }

// Faces returns a copy of the triangle index triples.
func (m *TriangleMesh) Faces() [][3]int { return append([][3]int(nil), m.faces...) }

// TriangleCount returns the number of triangles.
func (m *TriangleMesh) TriangleCount() int { return len(m.faces) }

// BoundingBox returns the box of all vertices.
func (m *TriangleMesh) BoundingBox() (r3.Box, error) {
	return boxOf(m.vertices)
}

// Centroid returns the volume centroid for closed meshes and the
// area-weighted centroid for open ones. Tetrahedra are taken against the
// first vertex instead of the origin to keep cancellation small for meshes
// far from the origin.
func (m *TriangleMesh) Centroid() (r3.Vec, error) {
	if len(m.faces) == 0 {
		return r3.Vec{}, ErrDegenerate
	}
	ref := m.vertices[m.faces[0][0]]
	if m.closed {
		c, _, err := m.volumeCentroid(ref)
		return c, err
	}
	var sum r3.Vec
	var total float64
	for _, f := range m.faces {
		a, b, c := m.vertices[f[0]], m.vertices[f[1]], m.vertices[f[2]]
		area := r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a))) / 2
		mid := r3.Scale(1.0/3, r3.Add(r3.Add(r3.Sub(a, ref), r3.Sub(b, ref)), r3.Sub(c, ref)))
		sum = r3.Add(sum, r3.Scale(area, mid))
		total += area
	}
	if total == 0 {
		return r3.Vec{}, ErrDegenerate
	}
	return r3.Add(ref, r3.Scale(1/total, sum)), nil
}

// Volume returns the enclosed volume of a closed mesh. Open meshes have no
// volume and return ErrDegenerate.
func (m *TriangleMesh) Volume() (float64, error) {
	if !m.closed {
		return 0, ErrDegenerate
	}
	_, v, err := m.volumeCentroid(m.vertices[m.faces[0][0]])
	return math.Abs(v), err
}

func (m *TriangleMesh) volumeCentroid(ref r3.Vec) (r3.Vec, float64, error) {
	var sum r3.Vec
	var vol float64
	for _, f := range m.faces {
		a := r3.Sub(m.vertices[f[0]], ref)
		b := r3.Sub(m.vertices[f[1]], ref)
		c := r3.Sub(m.vertices[f[2]], ref)
		v := r3.Dot(a, r3.Cross(b, c)) / 6
		sum = r3.Add(sum, r3.Scale(v/4, r3.Add(r3.Add(a, b), c)))
		vol += v
	}
	if vol == 0 || math.IsNaN(vol) {
		return r3.Vec{}, 0, ErrDegenerate
	}
	return r3.Add(ref, r3.Scale(1/vol, sum)), vol, nil
}

// Translate returns a copy of the mesh moved by v.
func (m *TriangleMesh) Translate(v r3.Vec) Body {
	return &TriangleMesh{vertices: translatePoints(m.vertices, v), faces: m.faces, closed: m.closed}
}

// Scale returns a copy of the mesh scaled by f about the origin.
func (m *TriangleMesh) Scale(f float64) Body {
	return &TriangleMesh{vertices: scalePoints(m.vertices, f), faces: m.faces, closed: m.closed}
}

// Render converts the mesh to the flat single-precision layout with one
// face normal per corner.
func (m *TriangleMesh) Render() *Mesh {
	out := &Mesh{
		Vertices: make([]float32, 0, len(m.faces)*9),
		Normals:  make([]float32, 0, len(m.faces)*9),
		Indices:  make([]uint32, 0, len(m.faces)*3),
	}
	for i, f := range m.faces {
		a, b, c := m.vertices[f[0]], m.vertices[f[1]], m.vertices[f[2]]
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		if l := r3.Norm(n); l > 0 {
			n = r3.Scale(1/l, n)
		}
		for j, v := range [3]r3.Vec{a, b, c} {
			out.Vertices = append(out.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
			out.Normals = append(out.Normals, float32(n.X), float32(n.Y), float32(n.Z))
			out.Indices = append(out.Indices, uint32(i*3+j))
		}
	}
	return out
}

// BoxMesh returns a closed, outward-oriented 12-triangle mesh of the
// axis-aligned box spanning min and max.
func BoxMesh(min, max r3.Vec) *TriangleMesh {
	v := []r3.Vec{
		{X: min.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: max.Y, Z: max.Z},
		{X: min.X, Y: max.Y, Z: max.Z},
	}
	f := [][3]int{
		{0, 2, 1}, {0, 3, 2}, // bottom
		{4, 5, 6}, {4, 6, 7}, // top
		{0, 1, 5}, {0, 5, 4}, // front
		{3, 7, 6}, {3, 6, 2}, // back
		{0, 4, 7}, {0, 7, 3}, // left
		{1, 2, 6}, {1, 6, 5}, // right
	}
	return &TriangleMesh{vertices: v, faces: f, closed: true}
}
