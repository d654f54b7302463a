// Package normalize recenters geometry at the coordinate origin before it is
// sent through a lossy export/import round-trip, and reports the vector
// that restores the original placement afterwards.
//
// Two policies exist and they are not interchangeable. A single solid is
// moved by its centroid; a batch is moved by the center of the union of the
// bounding boxes of its members. Batches must go through NormalizeAll: calling
// Normalize per body produces per-body vectors that cannot be composed.
package normalize

import (
	"errors"

	"github.com/chazu/directshape/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// Result is the outcome of the single-body policy.
type Result struct {
	// Geometry is the recentered body, or the input itself when no
	// translation was applied.
	Geometry kernel.Body
	// Restoration is the translation that moves Geometry back to the
	// original placement.
	Restoration r3.Vec
	// Translated reports whether Geometry is a new, moved body.
	Translated bool
}

// BatchResult is the outcome of the multi-body policy. All bodies share one
// restoration vector.
type BatchResult struct {
	Geometry    []kernel.Body
	Restoration r3.Vec
	Translated  bool
}

// Normalizer holds the zero-length tolerance. It has no other state and is
// safe for concurrent use.
type Normalizer struct {
	tol float64
}

// New returns a Normalizer with the given zero-length tolerance. A
// non-positive tolerance selects kernel.DefaultTolerance.
func New(tolerance float64) *Normalizer {
	if tolerance <= 0 {
		tolerance = kernel.DefaultTolerance
	}
	return &Normalizer{tol: tolerance}
}

// Tolerance returns the zero-length threshold in use.
func (n *Normalizer) Tolerance() float64 { return n.tol }

// Normalize applies the single-body policy. Only KindSolid bodies are
// recentered on their centroid; every other kind is returned unchanged with
// a zero restoration vector.
func (n *Normalizer) Normalize(b kernel.Body) (Result, error) {
	if b == nil {
		return Result{}, invalid("nil body", -1, nil)
	}
	if b.Kind() != kernel.KindSolid {
		return Result{Geometry: b}, nil
	}

	c, err := b.Centroid()
	if err != nil {
		return Result{}, invalid("centroid", -1, err)
	}
	if !kernel.IsFinite(c) {
		return Result{}, invalid("centroid", -1, errors.New("non-finite centroid"))
	}
	if kernel.IsZeroLength(c, n.tol) {
		return Result{Geometry: b}, nil
	}

	return Result{
		Geometry:    b.Translate(kernel.Reverse(c)),
		Restoration: c,
		Translated:  true,
	}, nil
}

// NormalizeAll applies the multi-body policy: every body, whatever its kind,
// is moved by the negated center of the union bounding box.
func (n *Normalizer) NormalizeAll(bodies []kernel.Body) (BatchResult, error) {
	if len(bodies) == 0 {
		return BatchResult{}, invalid("empty body list", -1, nil)
	}

	var union r3.Box
	for i, b := range bodies {
		if b == nil {
			return BatchResult{}, invalid("nil body", i, nil)
		}
		bb, err := b.BoundingBox()
		if err != nil {
			return BatchResult{}, invalid("bounding box", i, err)
		}
		if !kernel.ValidBox(bb) {
			return BatchResult{}, invalid("bounding box", i, errors.New("inverted or non-finite box"))
		}
		if i == 0 {
			union = bb
		} else {
			union = kernel.Extend(union, bb)
		}
	}

	out := make([]kernel.Body, len(bodies))
	m := kernel.Center(union)
	if kernel.IsZeroLength(m, n.tol) {
		copy(out, bodies)
		return BatchResult{Geometry: out}, nil
	}

	shift := kernel.Reverse(m)
	for i, b := range bodies {
		out[i] = b.Translate(shift)
	}
	return BatchResult{Geometry: out, Restoration: m, Translated: true}, nil
}
