package normalize

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry is matched by every *InvalidGeometryError.
var ErrInvalidGeometry = errors.New("invalid geometry")

// InvalidGeometryError reports that a centroid or bounding box could not be
// computed for the input. Index is the offending body in a batch, or -1.
type InvalidGeometryError struct {
	Op    string
	Index int
	Err   error
}

func (e *InvalidGeometryError) Error() string {
	msg := "normalize: " + e.Op
	if e.Index >= 0 {
		msg += fmt.Sprintf(" (body %d)", e.Index)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidGeometryError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidGeometry) true for any InvalidGeometryError.
func (e *InvalidGeometryError) Is(target error) bool {
	return target == ErrInvalidGeometry
}

func invalid(op string, index int, err error) error {
	return &InvalidGeometryError{Op: op, Index: index, Err: err}
}
