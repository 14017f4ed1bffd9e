package solver

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

var (
	ErrNotConverged = errors.New("iterative solver did not converge")
	ErrSingular     = errors.New("singular system")
)

type Method uint8

const (
	DirectMethod Method = iota
	CGMethod
)

func (m Method) String() string {
	switch m {
	case DirectMethod:
		return "direct"
	case CGMethod:
		return "cg"
	}
	return fmt.Sprintf("Method(%d)", uint8(m))
}

func NewMethod(label string) (m Method, err error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "direct", "lu":
		return DirectMethod, nil
	case "cg":
		return CGMethod, nil
	}
	err = fmt.Errorf("solver %q: %w", label, types.ErrUnsupportedOperation)
	return
}

func checkSystem(A mat.Matrix, b []float64) error {
	nr, nc := A.Dims()
	if nr != nc || len(b) != nr {
		return fmt.Errorf("%dx%d system with a right hand side of length %d: %w",
			nr, nc, len(b), types.ErrShapeMismatch)
	}
	return nil
}

// DirectLimit is the largest system Direct accepts; the dense copy of A takes 8 n^2 bytes.
const DirectLimit = 10000

/*
Direct factors a dense copy of A with partial pivoting LU. Memory is O(n^2) and work O(n^3), so
it is meant for small systems and the saddle point blocks CG cannot take. Systems larger than
DirectLimit are refused.
*/
func Direct(A utils.SparseMatrix, b []float64) (x []float64, err error) {
	if err = checkSystem(A, b); err != nil {
		return
	}
	if len(b) > DirectLimit {
		return nil, fmt.Errorf("direct solve of %d unknowns, limit %d: %w", len(b), DirectLimit, types.ErrUnsupportedOperation)
	}
	var (
		n  = len(b)
		lu mat.LU
		xv mat.VecDense
	)
	lu.Factorize(A.ToCSR().ToDense())
	if math.IsInf(lu.Cond(), 1) {
		return nil, fmt.Errorf("direct solve of %d unknowns: %w", n, ErrSingular)
	}
	if err = lu.SolveVecTo(&xv, false, mat.NewVecDense(n, append([]float64{}, b...))); err != nil {
		// an ill conditioned but finite system still gets a solution
		var ce mat.Condition
		if !errors.As(err, &ce) || math.IsInf(float64(ce), 1) {
			return nil, fmt.Errorf("direct solve of %d unknowns: %w", n, err)
		}
		err = nil
	}
	x = xv.RawVector().Data
	if utils.IsNan(x) {
		return nil, fmt.Errorf("direct solve of %d unknowns: %w", n, ErrSingular)
	}
	return
}

type CGResult struct {
	Iterations int
	Residual   float64 // relative, in the 2-norm
}

/*
CG solves a symmetric positive definite system with Jacobi preconditioned conjugate gradients,
starting from zero. It stops when |r| <= tol |b|.
*/
func CG(A utils.CSR, b []float64, tol float64, maxIter int) (x []float64, res CGResult, err error) {
	if err = checkSystem(A, b); err != nil {
		return
	}
	var (
		n     = len(b)
		diag  = A.Diagonal()
		r     = append([]float64{}, b...)
		z     = make([]float64, n)
		p     = make([]float64, n)
		Ap    = make([]float64, n)
		bnorm = floats.Norm(b, 2)
	)
	x = make([]float64, n)
	if bnorm == 0 {
		return
	}
	for i, d := range diag {
		if d <= 0 {
			return nil, res, fmt.Errorf("diagonal entry %d = %g of a CG system: %w", i, d, ErrSingular)
		}
	}
	precondition := func() {
		for i := range z {
			z[i] = r[i] / diag[i]
		}
	}
	precondition()
	copy(p, z)
	rz := floats.Dot(r, z)
	for res.Iterations = 1; res.Iterations <= maxIter; res.Iterations++ {
		floats.Scale(0, Ap)
		A.M.MulVecTo(Ap, false, p)
		alpha := rz / floats.Dot(p, Ap)
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, Ap)
		res.Residual = floats.Norm(r, 2) / bnorm
		if utils.IsNan(res.Residual) {
			return nil, res, fmt.Errorf("CG breakdown at iteration %d: %w", res.Iterations, ErrSingular)
		}
		if res.Residual <= tol {
			return
		}
		precondition()
		rzNew := floats.Dot(r, z)
		floats.AddScaledTo(p, z, rzNew/rz, p)
		rz = rzNew
	}
	res.Iterations = maxIter
	err = fmt.Errorf("residual %.3e after %d iterations: %w", res.Residual, maxIter, ErrNotConverged)
	return
}

// Solve dispatches to the chosen method.
func Solve(method Method, A utils.SparseMatrix, b []float64, tol float64, maxIter int) (x []float64, err error) {
	switch method {
	case CGMethod:
		x, _, err = CG(A.ToCSR(), b, tol, maxIter)
		return
	case DirectMethod:
		return Direct(A, b)
	}
	err = fmt.Errorf("solver %v: %w", method, types.ErrUnsupportedOperation)
	return
}
