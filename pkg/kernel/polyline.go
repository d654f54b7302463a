package kernel

import "gonum.org/v1/gonum/spatial/r3"

var (
	_ Body   = (*Polyline)(nil)
	_ Scaler = (*Polyline)(nil)
)

// Polyline is an open chain of line segments.
type Polyline struct {
	points []r3.Vec
}

// NewPolyline returns a polyline through pts. The slice is copied.
func NewPolyline(pts ...r3.Vec) *Polyline {
	return &Polyline{points: append([]r3.Vec(nil), pts...)}
}

// Kind returns KindCurve.
func (p *Polyline) Kind() Kind { return KindCurve }

// Points returns a copy of the vertices.
func (p *Polyline) Points() []r3.Vec { return append([]r3.Vec(nil), p.points...) }

// Length returns the total segment length.
func (p *Polyline) Length() float64 {
	var l float64
	for i := 1; i < len(p.points); i++ {
		l += r3.Norm(r3.Sub(p.points[i], p.points[i-1]))
	}
	return l
}

// BoundingBox returns the box of all vertices.
func (p *Polyline) BoundingBox() (r3.Box, error) {
	return boxOf(p.points)
}

// Centroid returns the length-weighted centroid of the segments. A
// zero-length polyline returns its first point.
func (p *Polyline) Centroid() (r3.Vec, error) {
	if len(p.points) == 0 {
		return r3.Vec{}, ErrDegenerate
	}
	var sum r3.Vec
	var total float64
	for i := 1; i < len(p.points); i++ {
		a, b := p.points[i-1], p.points[i]
		l := r3.Norm(r3.Sub(b, a))
		sum = r3.Add(sum, r3.Scale(l/2, r3.Add(a, b)))
		total += l
	}
	if total == 0 {
		return p.points[0], nil
	}
	return r3.Scale(1/total, sum), nil
}

// Translate returns a copy moved by v.
func (p *Polyline) Translate(v r3.Vec) Body {
	return &Polyline{points: translatePoints(p.points, v)}
}

// Scale returns a copy scaled by f about the origin.
func (p *Polyline) Scale(f float64) Body {
	return &Polyline{points: scalePoints(p.points, f)}
}
