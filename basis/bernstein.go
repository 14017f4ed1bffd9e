package basis

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

// bernsteinTable is B[k][d] = bc[d]^k / k!
func bernsteinTable(bc []float64, p int) (B table1D) {
	var (
		nb = len(bc)
	)
	B = make(table1D, p+1)
	B[0] = utils.ConstArray(nb, 1)
	for k := 1; k <= p; k++ {
		B[k] = make([]float64, nb)
		for d, b := range bc {
			B[k][d] = B[k-1][d] * b / float64(k)
		}
	}
	return
}

// bernsteinDerivative shifts the table down one order: d/db (b^k/k!) = b^(k-1)/(k-1)!
func bernsteinDerivative(B table1D) (dB table1D) {
	dB = make(table1D, len(B))
	dB[0] = make([]float64, len(B[0]))
	for k := 1; k < len(B); k++ {
		dB[k] = B[k-1]
	}
	return
}

// BernsteinBasis evaluates p!/alpha! lambda^alpha, (NQ, ldof).
func BernsteinBasis(bcs [][]float64, p int, mi [][]int) (phi *mat.Dense, err error) {
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
	var (
		pf = utils.Factorial(p)
	)
	phi = mat.NewDense(len(bcs), len(mi), nil)
	for q, bc := range bcs {
		productValues(bernsteinTable(bc, p), mi, pf, phi.RawRowView(q))
	}
	return
}

// BernsteinGradBasis gives barycentric derivatives (NQ, ldof, TD+1).
func BernsteinGradBasis(bcs [][]float64, p int, mi [][]int) (R *utils.Tensor, err error) {
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
	var (
		pf = utils.Factorial(p)
	)
	R = utils.NewTensor([]int{len(bcs), len(mi), len(mi[0])})
	for q, bc := range bcs {
		B := bernsteinTable(bc, p)
		productGradient(B, bernsteinDerivative(B), mi, pf, R.Slab(q))
	}
	return
}

/*
BernsteinGradMBasis returns the m-th derivative tensors of the degree p Bernstein basis at bcs,
shaped (NQ, NC, ldof, N) where N = C(m+GD-1, GD-1) symmetric components ordered as in
SymmetryIndex(GD, m). glambda is (NC, TD+1, GD). With beta ranging over order m multi-indices,

	D^m b_alpha = sum_beta (m!)^2 C(p,m) / beta! * b^(p-m)_(alpha-beta) * Sym(grad lambda^beta)

m = 0 gives the basis values. When m > p every derivative vanishes and the result is zero.
*/
func BernsteinGradMBasis(bcs [][]float64, p, m int, glambda *utils.Tensor) (G *utils.Tensor, err error) {
	if len(bcs) == 0 {
		err = fmt.Errorf("no evaluation points: %w", types.ErrShapeMismatch)
		return
	}
	var (
		TD         = len(bcs[0]) - 1
		NQ         = len(bcs)
		NC, nb, GD int
		mi         [][]int
		si         *SymmetricIndex
	)
	if glambda.Rank() != 3 || glambda.Shape[1] != TD+1 {
		err = fmt.Errorf("barycentric gradients of shape %v for points of dimension %d: %w",
			glambda.Shape, TD+1, types.ErrShapeMismatch)
		return
	}
	NC, nb, GD = glambda.Shape[0], glambda.Shape[1], glambda.Shape[2]
	if mi, err = MultiIndexMatrix(p, TD); err != nil {
		return
	}
	if err = checkPoints(bcs, mi); err != nil {
		return
	}
	if si, err = SymmetryIndex(GD, m); err != nil {
		return
	}
	var (
		ldof = len(mi)
		N    = si.NumberOfComponents()
	)
	G = utils.NewTensor([]int{NQ, NC, ldof, N})
	if m > p {
		return
	}
	if m == 0 {
		var phi *mat.Dense
		if phi, err = BernsteinBasis(bcs, p, mi); err != nil {
			return
		}
		for q := 0; q < NQ; q++ {
			row := phi.RawRowView(q)
			for c := 0; c < NC; c++ {
				copy(G.Data[(q*NC+c)*ldof:(q*NC+c+1)*ldof], row)
			}
		}
		return
	}
	var (
		betas, miLow [][]int
		lowVals      *mat.Dense
		coef         []float64
		seqs         [][]int
		cmp          = utils.Factorial(m) * utils.Factorial(m) * float64(utils.Binomial(p, m))
	)
	if betas, err = MultiIndexMatrix(m, TD); err != nil {
		return
	}
	if miLow, err = MultiIndexMatrix(p-m, TD); err != nil {
		return
	}
	if lowVals, err = BernsteinBasis(bcs, p-m, miLow); err != nil {
		return
	}
	coef = make([]float64, len(betas))
	seqs = make([][]int, len(betas))
	for b, beta := range betas {
		coef[b] = cmp
		for i, k := range beta {
			coef[b] /= utils.Factorial(k)
			for j := 0; j < k; j++ {
				seqs[b] = append(seqs[b], i)
			}
		}
	}
	// (alpha, beta) -> alpha-beta row in the low order table, -1 when alpha < beta
	pairs := make([][]int, ldof)
	diff := make([]int, nb)
	for a, alpha := range mi {
		pairs[a] = make([]int, len(betas))
		for b, beta := range betas {
			ok := true
			for i := range alpha {
				diff[i] = alpha[i] - beta[i]
				if diff[i] < 0 {
					ok = false
				}
			}
			pairs[a][b] = -1
			if ok {
				pairs[a][b] = MultiIndexNumber(diff)
			}
		}
	}
	sym := make([]float64, len(betas)*N)
	for c := 0; c < NC; c++ {
		gl := glambda.Slab(c)
		for b := range betas {
			si.Symmetrize(gl, seqs[b], sym[b*N:(b+1)*N])
		}
		for q := 0; q < NQ; q++ {
			low := lowVals.RawRowView(q)
			out := G.Data[(q*NC+c)*ldof*N : (q*NC+c+1)*ldof*N]
			for a := 0; a < ldof; a++ {
				for b, g := range pairs[a] {
					if g < 0 {
						continue
					}
					fac := coef[b] * low[g]
					for n := 0; n < N; n++ {
						out[a*N+n] += fac * sym[b*N+n]
					}
				}
			}
		}
	}
	return
}

type changeKey struct{ p, TD int }

var (
	changeCache = make(map[changeKey][2]*mat.Dense)
	changeMutex sync.Mutex
)

/*
LagrangeBernsteinMatrices returns M with M[i][j] = b_j(x_i) at the Lagrange nodes x_i = mi_i/p,
and its inverse. Lagrange coefficients are M times Bernstein coefficients, and the Lagrange basis
is l_i = sum_j b_j (M^-1)[j][i].
*/
func LagrangeBernsteinMatrices(p, TD int) (M, Minv *mat.Dense, err error) {
	key := changeKey{p, TD}
	changeMutex.Lock()
	defer changeMutex.Unlock()
	if pair, ok := changeCache[key]; ok {
		return pair[0], pair[1], nil
	}
	var (
		mi [][]int
	)
	if mi, err = MultiIndexMatrix(p, TD); err != nil {
		return
	}
	if M, err = BernsteinBasis(LagrangeNodes(p, mi), p, mi); err != nil {
		return
	}
	Minv = mat.NewDense(len(mi), len(mi), nil)
	if err = Minv.Inverse(M); err != nil {
		err = fmt.Errorf("inverting the Bernstein collocation matrix for p = %d: %w", p, err)
		return
	}
	changeCache[key] = [2]*mat.Dense{M, Minv}
	return
}

// LagrangeNodes are the barycentric points mi/p; p = 0 places its single node at the barycenter.
func LagrangeNodes(p int, mi [][]int) (bcs [][]float64) {
	bcs = make([][]float64, len(mi))
	for l, alpha := range mi {
		bcs[l] = make([]float64, len(alpha))
		for d, a := range alpha {
			if p == 0 {
				bcs[l][d] = 1 / float64(len(alpha))
			} else {
				bcs[l][d] = float64(a) / float64(p)
			}
		}
	}
	return
}

// LagrangeGradMBasis maps Bernstein m-th derivatives onto the Lagrange basis, same shape.
func LagrangeGradMBasis(bcs [][]float64, p, m int, glambda *utils.Tensor) (G *utils.Tensor, err error) {
	var (
		GB   *utils.Tensor
		Minv *mat.Dense
	)
	if GB, err = BernsteinGradMBasis(bcs, p, m, glambda); err != nil {
		return
	}
	if m > p {
		return GB, nil
	}
	if _, Minv, err = LagrangeBernsteinMatrices(p, len(bcs[0])-1); err != nil {
		return
	}
	var (
		NQ, NC, ldof, N = GB.Shape[0], GB.Shape[1], GB.Shape[2], GB.Shape[3]
	)
	G = utils.NewTensor(GB.Shape)
	for qc := 0; qc < NQ*NC; qc++ {
		in := GB.Data[qc*ldof*N : (qc+1)*ldof*N]
		out := G.Data[qc*ldof*N : (qc+1)*ldof*N]
		for i := 0; i < ldof; i++ {
			for j := 0; j < ldof; j++ {
				w := Minv.At(j, i)
				if w == 0 {
					continue
				}
				for n := 0; n < N; n++ {
					out[i*N+n] += w * in[j*N+n]
				}
			}
		}
	}
	return
}
