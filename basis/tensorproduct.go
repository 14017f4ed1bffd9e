package basis

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

// intervalTables evaluates the 1D degree p Lagrange basis (nodes i/p) and its x derivative.
func intervalTables(x float64, p int) (v, dv []float64) {
	A, F := lagrangeTables([]float64{1 - x, x}, p)
	v = make([]float64, p+1)
	dv = make([]float64, p+1)
	for i := 0; i <= p; i++ {
		v[i] = A[p-i][0] * A[i][1]
		dv[i] = -F[p-i][0]*A[i][1] + A[p-i][0]*F[i][1]
	}
	return
}

// TensorIndex splits a local tensor-product dof into per-direction 1D indices, x slowest.
func TensorIndex(l, p, TD int) (ii []int) {
	ii = make([]int, TD)
	for t := TD - 1; t >= 0; t-- {
		ii[t] = l % (p + 1)
		l /= p + 1
	}
	return
}

func checkTensorPoints(points [][]float64) (TD int, err error) {
	if len(points) == 0 {
		err = fmt.Errorf("no evaluation points: %w", types.ErrShapeMismatch)
		return
	}
	TD = len(points[0])
	if TD < 1 || TD > 3 {
		err = fmt.Errorf("tensor product basis for TD = %d: %w", TD, types.ErrUnsupportedDimension)
		return
	}
	for q, pt := range points {
		if len(pt) != TD {
			err = fmt.Errorf("point %d has %d coordinates, expected %d: %w", q, len(pt), TD, types.ErrShapeMismatch)
			return
		}
	}
	return
}

/*
TensorProductShapeFunction evaluates the degree p Lagrange basis on [0,1]^TD at reference
points, (NQ, (p+1)^TD). Local dof l has 1D indices TensorIndex(l, p, TD).
*/
func TensorProductShapeFunction(points [][]float64, p int) (phi *mat.Dense, err error) {
	var (
		TD int
	)
	if TD, err = checkTensorPoints(points); err != nil {
		return
	}
	ldof := NumberOfTensorDofs(p, TD)
	phi = mat.NewDense(len(points), ldof, nil)
	for q, pt := range points {
		vals := make([][]float64, TD)
		for t := 0; t < TD; t++ {
			vals[t], _ = intervalTables(pt[t], p)
		}
		row := phi.RawRowView(q)
		for l := 0; l < ldof; l++ {
			val := 1.
			for t, i := range TensorIndex(l, p, TD) {
				val *= vals[t][i]
			}
			row[l] = val
		}
	}
	return
}

// TensorProductGradShapeFunction gives reference gradients (NQ, ldof, TD).
func TensorProductGradShapeFunction(points [][]float64, p int) (R *utils.Tensor, err error) {
	var (
		TD int
	)
	if TD, err = checkTensorPoints(points); err != nil {
		return
	}
	ldof := NumberOfTensorDofs(p, TD)
	R = utils.NewTensor([]int{len(points), ldof, TD})
	for q, pt := range points {
		vals := make([][]float64, TD)
		dvals := make([][]float64, TD)
		for t := 0; t < TD; t++ {
			vals[t], dvals[t] = intervalTables(pt[t], p)
		}
		slab := R.Slab(q)
		for l := 0; l < ldof; l++ {
			ii := TensorIndex(l, p, TD)
			for s := 0; s < TD; s++ {
				val := 1.
				for t, i := range ii {
					if t == s {
						val *= dvals[t][i]
					} else {
						val *= vals[t][i]
					}
				}
				slab[l*TD+s] = val
			}
		}
	}
	return
}

func NumberOfTensorDofs(p, TD int) (n int) {
	n = 1
	for t := 0; t < TD; t++ {
		n *= p + 1
	}
	return
}

// TensorProductNodes are the reference interpolation points of the basis, i/p per direction.
func TensorProductNodes(p, TD int) (pts [][]float64) {
	ldof := NumberOfTensorDofs(p, TD)
	pts = make([][]float64, ldof)
	for l := range pts {
		pts[l] = make([]float64, TD)
		for t, i := range TensorIndex(l, p, TD) {
			if p == 0 {
				pts[l][t] = 0.5
			} else {
				pts[l][t] = float64(i) / float64(p)
			}
		}
	}
	return
}
