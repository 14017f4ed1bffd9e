package solver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

// laplacian1D is the SPD tridiagonal matrix of a 1D Dirichlet problem.
func laplacian1D(n int) utils.CSR {
	T := utils.NewTriplets(n, n)
	for i := 0; i < n; i++ {
		T.Add(i, i, 2)
		if i > 0 {
			T.Add(i, i-1, -1)
		}
		if i < n-1 {
			T.Add(i, i+1, -1)
		}
	}
	return T.ToCSR()
}

func TestDirectAndCG(t *testing.T) {
	var (
		n    = 20
		A    = laplacian1D(n)
		want = make([]float64, n)
	)
	for i := range want {
		want[i] = float64(i*i) / 7
	}
	b := A.MulVec(want)

	x, err := Direct(A, b)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, x, 1e-10)

	x, res, err := CG(A, b, 1e-12, 100)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, x, 1e-8)
	assert.LessOrEqual(t, res.Iterations, n)
	assert.LessOrEqual(t, res.Residual, 1e-12)

	// COO input goes through the same path
	x, err = Solve(DirectMethod, utils.NewCOO(n, n, []int{0}, []int{0}, []float64{1}), make([]float64, n), 0, 0)
	assert.True(t, errors.Is(err, ErrSingular))
	assert.Nil(t, x)

	_, _, err = CG(A, b, 1e-14, 2)
	assert.True(t, errors.Is(err, ErrNotConverged))

	x, _, err = CG(A, make([]float64, n), 1e-12, 10)
	require.NoError(t, err)
	assert.Equal(t, make([]float64, n), x)

	_, err = Direct(A, b[:3])
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))

	// large systems are refused before the dense copy is made
	big := utils.NewTriplets(DirectLimit+1, DirectLimit+1)
	for i := 0; i <= DirectLimit; i++ {
		big.Add(i, i, 1)
	}
	_, err = Direct(big.ToCSR(), make([]float64, DirectLimit+1))
	assert.True(t, errors.Is(err, types.ErrUnsupportedOperation))
	x, _, err = CG(big.ToCSR(), utils.ConstArray(DirectLimit+1, 2), 1e-12, 10)
	require.NoError(t, err)
	assert.InDelta(t, 2, x[DirectLimit], 1e-12)
}

func TestMethod(t *testing.T) {
	for label, want := range map[string]Method{"": DirectMethod, "LU": DirectMethod, "cg": CGMethod} {
		m, err := NewMethod(label)
		require.NoError(t, err)
		assert.Equal(t, want, m)
	}
	_, err := NewMethod("gmres")
	assert.True(t, errors.Is(err, types.ErrUnsupportedOperation))
	assert.Equal(t, "cg", CGMethod.String())
}
