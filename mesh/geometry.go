package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofea/basis"
	"github.com/notargets/gofea/quadrature"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

// pseudoInverse returns (J^T J)^-1 J^T and sqrt(det(J^T J)) for a GD x TD Jacobian.
func pseudoInverse(J *mat.Dense) (Jp *mat.Dense, vol float64, err error) {
	var (
		_, TD = J.Dims()
		JtJ   = mat.NewDense(TD, TD, nil)
		inv   = mat.NewDense(TD, TD, nil)
	)
	JtJ.Mul(J.T(), J)
	det := mat.Det(JtJ)
	if det <= 0 {
		err = fmt.Errorf("degenerate cell, det(J^T J) = %g", det)
		return
	}
	if err = inv.Inverse(JtJ); err != nil {
		return
	}
	vol = math.Sqrt(det)
	Jp = mat.NewDense(TD, J.RawMatrix().Rows, nil)
	Jp.Mul(inv, J.T())
	return
}

// simplexJacobian has columns v_k - v_0 for k = 1..TD
func (m *Mesh) simplexJacobian(c int) (J *mat.Dense) {
	var (
		cell = m.Cells[c]
	)
	J = mat.NewDense(m.GD, m.TD, nil)
	for k := 1; k <= m.TD; k++ {
		for d := 0; d < m.GD; d++ {
			J.Set(d, k-1, m.Nodes[cell[k]][d]-m.Nodes[cell[0]][d])
		}
	}
	return
}

// tensorJacobian differentiates the multilinear map x(xi) = sum_v phi_v(xi) X_v
func (m *Mesh) tensorJacobian(c int, dphi []float64) (J *mat.Dense) {
	var (
		cell = m.Cells[c]
		TD   = m.TD
	)
	J = mat.NewDense(m.GD, TD, nil)
	for v, n := range cell {
		for d := 0; d < m.GD; d++ {
			for t := 0; t < TD; t++ {
				J.Set(d, t, J.At(d, t)+m.Nodes[n][d]*dphi[v*TD+t])
			}
		}
	}
	return
}

func (m *Mesh) computeSimplexGeometry() (err error) {
	var (
		NC  = len(m.Cells)
		TD  = m.TD
		GD  = m.GD
		fac = utils.Factorial(TD)
	)
	gl := utils.NewTensor([]int{NC, TD + 1, GD})
	measure := make([]float64, NC)
	for c := 0; c < NC; c++ {
		Jp, vol, err := pseudoInverse(m.simplexJacobian(c))
		if err != nil {
			return fmt.Errorf("cell %d: %w", c, err)
		}
		measure[c] = vol / fac
		slab := gl.Slab(c)
		for k := 1; k <= TD; k++ {
			for d := 0; d < GD; d++ {
				g := Jp.At(k-1, d)
				slab[k*GD+d] = g
				slab[d] -= g
			}
		}
	}
	m.glambda, m.measure = gl, measure
	return
}

/*
GradLambda returns the (NC, TD+1, GD) physical gradients of the barycentric coordinates of
every simplex cell. The result is cached and shared.
*/
func (m *Mesh) GradLambda() (gl *utils.Tensor, err error) {
	if !m.Type.IsSimplex() {
		err = fmt.Errorf("barycentric gradients of %v cells: %w", m.Type, types.ErrUnsupportedOperation)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.glambda == nil {
		if err = m.computeSimplexGeometry(); err != nil {
			return
		}
	}
	return m.glambda, nil
}

// CellMeasure is the length, area or volume of each cell.
func (m *Mesh) CellMeasure() (measure []float64, err error) {
	if m.Type.IsSimplex() {
		if _, err = m.GradLambda(); err != nil {
			return
		}
		return m.measure, nil
	}
	var (
		rule *quadrature.Rule
		qm   *utils.Tensor
	)
	rule = m.QuadratureFormula(2)
	if qm, err = m.QuadratureMeasure(rule); err != nil {
		return
	}
	measure = make([]float64, len(m.Cells))
	for c := range measure {
		for _, w := range qm.Slab(c) {
			measure[c] += w
		}
	}
	return
}

// ReferenceToPhysical maps one reference point (rule layout) of cell c.
func (m *Mesh) ReferenceToPhysical(c int, ref []float64) (x []float64) {
	var (
		cell = m.Cells[c]
	)
	x = make([]float64, m.GD)
	if m.Type.IsSimplex() {
		for k, b := range ref {
			for d := 0; d < m.GD; d++ {
				x[d] += b * m.Nodes[cell[k]][d]
			}
		}
		return
	}
	phi, err := basis.TensorProductShapeFunction([][]float64{ref}, 1)
	if err != nil {
		panic(err)
	}
	for v, n := range cell {
		w := phi.At(0, v)
		for d := 0; d < m.GD; d++ {
			x[d] += w * m.Nodes[n][d]
		}
	}
	return
}

// BCToPoint maps the rule points into every cell, (NC, NQ, GD).
func (m *Mesh) BCToPoint(rule *quadrature.Rule) (X *utils.Tensor) {
	var (
		NC = len(m.Cells)
		NQ = rule.NumberOfPoints()
	)
	X = utils.NewTensor([]int{NC, NQ, m.GD})
	for c := 0; c < NC; c++ {
		slab := X.Slab(c)
		for q, pt := range rule.Points {
			copy(slab[q*m.GD:(q+1)*m.GD], m.ReferenceToPhysical(c, pt))
		}
	}
	return
}

/*
GradTransform returns (NC, NQ, K, GD) gradients of the reference coordinates: for simplices
K = TD+1 and the rows are grad lambda_k, for tensor cells K = TD and the rows are grad xi_k.
A reference basis gradient contracted with it over K gives the physical gradient.
*/
func (m *Mesh) GradTransform(rule *quadrature.Rule) (T *utils.Tensor, err error) {
	var (
		NC = len(m.Cells)
		NQ = rule.NumberOfPoints()
		GD = m.GD
	)
	if m.Type.IsSimplex() {
		var gl *utils.Tensor
		if gl, err = m.GradLambda(); err != nil {
			return
		}
		K := m.TD + 1
		T = utils.NewTensor([]int{NC, NQ, K, GD})
		for c := 0; c < NC; c++ {
			src := gl.Slab(c)
			dst := T.Slab(c)
			for q := 0; q < NQ; q++ {
				copy(dst[q*K*GD:(q+1)*K*GD], src)
			}
		}
		return
	}
	var (
		TD   = m.TD
		dphi *utils.Tensor
	)
	if dphi, err = basis.TensorProductGradShapeFunction(rule.Points, 1); err != nil {
		return
	}
	T = utils.NewTensor([]int{NC, NQ, TD, GD})
	for c := 0; c < NC; c++ {
		dst := T.Slab(c)
		for q := 0; q < NQ; q++ {
			Jp, _, err := pseudoInverse(m.tensorJacobian(c, dphi.Slab(q)))
			if err != nil {
				return nil, fmt.Errorf("cell %d: %w", c, err)
			}
			for k := 0; k < TD; k++ {
				for d := 0; d < GD; d++ {
					dst[(q*TD+k)*GD+d] = Jp.At(k, d)
				}
			}
		}
	}
	return
}

// QuadratureMeasure folds the cell measure into the rule weights, (NC, NQ).
func (m *Mesh) QuadratureMeasure(rule *quadrature.Rule) (W *utils.Tensor, err error) {
	var (
		NC = len(m.Cells)
		NQ = rule.NumberOfPoints()
	)
	W = utils.NewTensor([]int{NC, NQ})
	if m.Type.IsSimplex() {
		var measure []float64
		if measure, err = m.CellMeasure(); err != nil {
			return
		}
		for c := 0; c < NC; c++ {
			for q, w := range rule.Weights {
				W.Data[c*NQ+q] = w * measure[c]
			}
		}
		return
	}
	var dphi *utils.Tensor
	if dphi, err = basis.TensorProductGradShapeFunction(rule.Points, 1); err != nil {
		return
	}
	for c := 0; c < NC; c++ {
		for q, w := range rule.Weights {
			_, vol, err := pseudoInverse(m.tensorJacobian(c, dphi.Slab(q)))
			if err != nil {
				return nil, fmt.Errorf("cell %d: %w", c, err)
			}
			W.Data[c*NQ+q] = w * vol
		}
	}
	return
}
