package kernel

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultTolerance is the zero-length threshold used when callers do not
// configure one, in the working length unit.
const DefaultTolerance = 1e-9

// IsZeroLength reports whether v is shorter than tol.
func IsZeroLength(v r3.Vec, tol float64) bool {
	return r3.Norm(v) < tol
}

// Reverse returns -v.
func Reverse(v r3.Vec) r3.Vec {
	return r3.Scale(-1, v)
}

// NearlyEqual reports whether a and b are within tol of each other.
func NearlyEqual(a, b r3.Vec, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) <= tol
}

// IsFinite reports whether every component of v is a finite number.
func IsFinite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Center returns (min + max) / 2.
func Center(b r3.Box) r3.Vec {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

// Extend returns the smallest box containing a and b.
func Extend(a, b r3.Box) r3.Box {
	return r3.Box{
		Min: r3.Vec{X: math.Min(a.Min.X, b.Min.X), Y: math.Min(a.Min.Y, b.Min.Y), Z: math.Min(a.Min.Z, b.Min.Z)},
		Max: r3.Vec{X: math.Max(a.Max.X, b.Max.X), Y: math.Max(a.Max.Y, b.Max.Y), Z: math.Max(a.Max.Z, b.Max.Z)},
	}
}

// Include returns the smallest box containing b and p.
func Include(b r3.Box, p r3.Vec) r3.Box {
	return Extend(b, r3.Box{Min: p, Max: p})
}

// ValidBox reports whether b has finite corners with Min <= Max on every axis.
func ValidBox(b r3.Box) bool {
	if !IsFinite(b.Min) || !IsFinite(b.Max) {
		return false
	}
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// TranslateBox moves both corners of b by v.
func TranslateBox(b r3.Box, v r3.Vec) r3.Box {
	return r3.Box{Min: r3.Add(b.Min, v), Max: r3.Add(b.Max, v)}
}

// boxOf returns the bounding box of pts. It fails on an empty slice.
func boxOf(pts []r3.Vec) (r3.Box, error) {
	if len(pts) == 0 {
		return r3.Box{}, ErrDegenerate
	}
	bb := r3.Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		bb = Include(bb, p)
	}
	return bb, nil
}

func translatePoints(pts []r3.Vec, v r3.Vec) []r3.Vec {
	out := make([]r3.Vec, len(pts))
	for i, p := range pts {
		out[i] = r3.Add(p, v)
	}
	return out
}

func scalePoints(pts []r3.Vec, f float64) []r3.Vec {
	out := make([]r3.Vec, len(pts))
	for i, p := range pts {
		out[i] = r3.Scale(f, p)
	}
	return out
}
