package types

import "errors"

// Sentinel errors shared by the basis, dof, space and fem packages. Callers match them with
// errors.Is; producers wrap them with fmt.Errorf("...: %w", ErrX) to add the offending values.
var (
	// ErrUnsupportedDimension is returned for a topological dimension outside {1, 2, 3}
	ErrUnsupportedDimension = errors.New("unsupported topological dimension")

	// ErrUnsupportedOperation is returned when an operation is undefined for the receiver, for
	// example a boundary DOF query on a discontinuous space
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrShapeMismatch is returned when caller supplied arrays have inconsistent shapes
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnknownElementType is returned by the registries for an unregistered tag
	ErrUnknownElementType = errors.New("unknown element type")
)
