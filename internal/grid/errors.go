package grid

import "errors"

var (
	// ErrInvalidDimension is returned when a resize would leave a negative width
	// or height.
	ErrInvalidDimension = errors.New("grid: invalid dimension")

	// ErrIndexOutOfBounds is returned by read-only access outside the grid, and
	// by writes to a constrained grid outside its extent.
	ErrIndexOutOfBounds = errors.New("grid: index out of bounds")
)
