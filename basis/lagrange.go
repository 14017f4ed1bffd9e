package basis

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

// table1D holds per-order, per-barycentric-coordinate factors: T[k][d] for k = 0..p.
type table1D [][]float64

func checkPoints(bcs [][]float64, mi [][]int) (err error) {
	if len(mi) == 0 {
		return fmt.Errorf("empty multi-index table: %w", types.ErrShapeMismatch)
	}
	nb := len(mi[0])
	for q, bc := range bcs {
		if len(bc) != nb {
			return fmt.Errorf("point %d has %d barycentric coordinates, multi-index rows have %d: %w",
				q, len(bc), nb, types.ErrShapeMismatch)
		}
	}
	return
}

func resolveIndex(p int, TD int, mi [][]int) ([][]int, error) {
	if mi != nil {
		return mi, nil
	}
	return MultiIndexMatrix(p, TD)
}

// lagrangeTables builds A[k][d] = prod_{j<k}(p*bc[d]-j)/k! and its derivative F = dA/dbc[d].
func lagrangeTables(bc []float64, p int) (A, F table1D) {
	var (
		nb = len(bc)
	)
	A = make(table1D, p+1)
	F = make(table1D, p+1)
	A[0] = utils.ConstArray(nb, 1)
	F[0] = make([]float64, nb)
	for k := 1; k <= p; k++ {
		A[k] = make([]float64, nb)
		F[k] = make([]float64, nb)
		fk := float64(k)
		for d, b := range bc {
			fac := float64(p)*b - float64(k-1)
			A[k][d] = A[k-1][d] * fac / fk
			F[k][d] = (F[k-1][d]*fac + float64(p)*A[k-1][d]) / fk
		}
	}
	return
}

// productValues evaluates prod_d T[mi[l][d]][d] for each local index l.
func productValues(T table1D, mi [][]int, scale float64, row []float64) {
	for l, alpha := range mi {
		val := scale
		for d, a := range alpha {
			val *= T[a][d]
		}
		row[l] = val
	}
}

// productGradient is d/d(bc_i) of the same product, with dT the derivative table.
func productGradient(T, dT table1D, mi [][]int, scale float64, slab []float64) {
	nb := len(mi[0])
	for l, alpha := range mi {
		for i := 0; i < nb; i++ {
			val := scale * dT[alpha[i]][i]
			for d, a := range alpha {
				if d != i {
					val *= T[a][d]
				}
			}
			slab[l*nb+i] = val
		}
	}
}

/*
SimplexShapeFunction evaluates the degree p Lagrange basis at barycentric points bcs, returning
an (NQ, ldof) matrix. A nil mi uses the multi-index table of the simplex implied by bcs.
*/
func SimplexShapeFunction(bcs [][]float64, p int, mi [][]int) (phi *mat.Dense, err error) {
	if len(bcs) == 0 {
		err = fmt.Errorf("no evaluation points: %w", types.ErrShapeMismatch)
		return
	}
	if mi, err = resolveIndex(p, len(bcs[0])-1, mi); err != nil {
		return
	}
	if err = checkPoints(bcs, mi); err != nil {
		return
	}
	phi = mat.NewDense(len(bcs), len(mi), nil)
	for q, bc := range bcs {
		A, _ := lagrangeTables(bc, p)
		productValues(A, mi, 1, phi.RawRowView(q))
	}
	return
}

// SimplexGradShapeFunction returns the (NQ, ldof, TD+1) derivatives of the basis with
// respect to each barycentric coordinate.
func SimplexGradShapeFunction(bcs [][]float64, p int, mi [][]int) (R *utils.Tensor, err error) {
	if len(bcs) == 0 {
		err = fmt.Errorf("no evaluation points: %w", types.ErrShapeMismatch)
		return
	}
	if mi, err = resolveIndex(p, len(bcs[0])-1, mi); err != nil {
		return
	}
	if err = checkPoints(bcs, mi); err != nil {
		return
	}
	R = utils.NewTensor([]int{len(bcs), len(mi), len(mi[0])})
	for q, bc := range bcs {
		A, F := lagrangeTables(bc, p)
		productGradient(A, F, mi, 1, R.Slab(q))
	}
	return
}

/*
PhysicalGradient contracts barycentric derivatives R (NQ, ldof, TD+1) with the per-cell
gradients of the barycentric coordinates glambda (NC, TD+1, GD), giving (NC, NQ, ldof, GD).
*/
func PhysicalGradient(R, glambda *utils.Tensor) (G *utils.Tensor, err error) {
	var (
		NQ, ldof, nb = R.Shape[0], R.Shape[1], R.Shape[2]
		NC, GD       = glambda.Shape[0], glambda.Shape[2]
	)
	if glambda.Shape[1] != nb {
		err = fmt.Errorf("barycentric gradient shape %v does not match basis derivative shape %v: %w",
			glambda.Shape, R.Shape, types.ErrShapeMismatch)
		return
	}
	G = utils.NewTensor([]int{NC, NQ, ldof, GD})
	for c := 0; c < NC; c++ {
		gl := glambda.Slab(c)
		gc := G.Slab(c)
		for q := 0; q < NQ; q++ {
			rq := R.Slab(q)
			for l := 0; l < ldof; l++ {
				out := gc[(q*ldof+l)*GD : (q*ldof+l+1)*GD]
				for i := 0; i < nb; i++ {
					r := rq[l*nb+i]
					if r == 0 {
						continue
					}
					for g := 0; g < GD; g++ {
						out[g] += r * gl[i*GD+g]
					}
				}
			}
		}
	}
	return
}

/*
MapGradient contracts reference derivatives R (NQ, ldof, K) with per point gradients of the
reference coordinates T (NC, NQ, K, GD), as produced by the mesh, giving (NC, NQ, ldof, GD).
*/
func MapGradient(R, T *utils.Tensor) (G *utils.Tensor, err error) {
	var (
		NQ, ldof, K = R.Shape[0], R.Shape[1], R.Shape[2]
	)
	if T.Rank() != 4 || T.Shape[1] != NQ || T.Shape[2] != K {
		err = fmt.Errorf("gradient transform shape %v does not match basis derivative shape %v: %w",
			T.Shape, R.Shape, types.ErrShapeMismatch)
		return
	}
	var (
		NC, GD = T.Shape[0], T.Shape[3]
	)
	G = utils.NewTensor([]int{NC, NQ, ldof, GD})
	for c := 0; c < NC; c++ {
		tc := T.Slab(c)
		gc := G.Slab(c)
		for q := 0; q < NQ; q++ {
			rq := R.Slab(q)
			tq := tc[q*K*GD : (q+1)*K*GD]
			for l := 0; l < ldof; l++ {
				out := gc[(q*ldof+l)*GD : (q*ldof+l+1)*GD]
				for k := 0; k < K; k++ {
					r := rq[l*K+k]
					if r == 0 {
						continue
					}
					for g := 0; g < GD; g++ {
						out[g] += r * tq[k*GD+g]
					}
				}
			}
		}
	}
	return
}
