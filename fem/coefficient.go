package fem

import (
	"fmt"

	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

type CoefficientKind uint8

const (
	Constant CoefficientKind = iota
	PositionDependent
	QuadratureValues
)

func (k CoefficientKind) String() string {
	switch k {
	case Constant:
		return "Constant"
	case PositionDependent:
		return "PositionDependent"
	case QuadratureValues:
		return "QuadratureValues"
	}
	return fmt.Sprintf("CoefficientKind(%d)", uint8(k))
}

/*
Coefficient is a scalar integrand factor. Exactly one of Value, Func or Values is used, chosen
by Kind. Values is (NC, NQ) and must be laid out on the same rule as the integrator using it.
*/
type Coefficient struct {
	Kind   CoefficientKind
	Value  float64
	Func   func(x []float64) float64
	Values *utils.Tensor
}

func ConstantCoef(v float64) Coefficient { return Coefficient{Kind: Constant, Value: v} }

func FuncCoef(f func(x []float64) float64) Coefficient {
	return Coefficient{Kind: PositionDependent, Func: f}
}

func ValuesCoef(T *utils.Tensor) Coefficient { return Coefficient{Kind: QuadratureValues, Values: T} }

// Eval returns the coefficient at point q of cell c, x being its physical location.
func (cf Coefficient) Eval(c, q int, x []float64) float64 {
	switch cf.Kind {
	case PositionDependent:
		return cf.Func(x)
	case QuadratureValues:
		return cf.Values.At(c, q)
	}
	return cf.Value
}

func (cf Coefficient) needsPoints() bool { return cf.Kind == PositionDependent }

func (cf Coefficient) check(NC, NQ int) (err error) {
	switch cf.Kind {
	case PositionDependent:
		if cf.Func == nil {
			err = fmt.Errorf("position dependent coefficient without a function: %w", types.ErrShapeMismatch)
		}
	case QuadratureValues:
		if cf.Values == nil || cf.Values.Rank() != 2 || cf.Values.Shape[0] != NC || cf.Values.Shape[1] != NQ {
			err = fmt.Errorf("coefficient values %v on %d cells with %d points: %w",
				shapeOf(cf.Values), NC, NQ, types.ErrShapeMismatch)
		}
	}
	return
}

// VectorCoefficient is the vector valued counterpart, Values being (NC, NQ, n).
type VectorCoefficient struct {
	Kind   CoefficientKind
	Value  []float64
	Func   func(x []float64) []float64
	Values *utils.Tensor
}

func ConstantVectorCoef(v ...float64) VectorCoefficient {
	return VectorCoefficient{Kind: Constant, Value: v}
}

func FuncVectorCoef(f func(x []float64) []float64) VectorCoefficient {
	return VectorCoefficient{Kind: PositionDependent, Func: f}
}

func ValuesVectorCoef(T *utils.Tensor) VectorCoefficient {
	return VectorCoefficient{Kind: QuadratureValues, Values: T}
}

// Eval returns the coefficient at point q of cell c. The result may alias internal storage.
func (vc VectorCoefficient) Eval(c, q int, x []float64) []float64 {
	switch vc.Kind {
	case PositionDependent:
		return vc.Func(x)
	case QuadratureValues:
		n := vc.Values.Shape[2]
		off := vc.Values.Offset(c, q, 0)
		return vc.Values.Data[off : off+n]
	}
	return vc.Value
}

func (vc VectorCoefficient) needsPoints() bool { return vc.Kind == PositionDependent }

func (vc VectorCoefficient) check(NC, NQ, n int) (err error) {
	switch vc.Kind {
	case Constant:
		if len(vc.Value) != n {
			err = fmt.Errorf("constant vector coefficient of length %d, want %d: %w",
				len(vc.Value), n, types.ErrShapeMismatch)
		}
	case PositionDependent:
		if vc.Func == nil {
			err = fmt.Errorf("position dependent coefficient without a function: %w", types.ErrShapeMismatch)
		}
	case QuadratureValues:
		V := vc.Values
		if V == nil || V.Rank() != 3 || V.Shape[0] != NC || V.Shape[1] != NQ || V.Shape[2] != n {
			err = fmt.Errorf("coefficient values %v, want (%d, %d, %d): %w",
				shapeOf(V), NC, NQ, n, types.ErrShapeMismatch)
		}
	}
	return
}

func shapeOf(T *utils.Tensor) []int {
	if T == nil {
		return nil
	}
	return T.Shape
}
