package fem

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/space"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

const tol = 1e-10

func lagrange(t *testing.T, et mesh.ElementType, p int, n ...int) *space.LagrangeFESpace {
	m, err := mesh.NewBoxMesh(et, nil, n...)
	require.NoError(t, err)
	ls, err := space.NewLagrangeFESpace(m, p, true)
	require.NoError(t, err)
	return ls
}

func dense(t *testing.T, A utils.SparseMatrix) *mat.Dense {
	return A.ToCSR().ToDense()
}

func assemble2(t *testing.T, trial, test space.Space, its ...BilinearIntegrator) *mat.Dense {
	A, err := NewBilinearForm(trial, test).AddIntegrator(its...).Assembly(utils.CSRFormat)
	require.NoError(t, err)
	return dense(t, A)
}

func solveDense(t *testing.T, A utils.SparseMatrix, F []float64) []float64 {
	var x mat.VecDense
	require.NoError(t, x.SolveVec(dense(t, A), mat.NewVecDense(len(F), append([]float64{}, F...))))
	return x.RawVector().Data
}

func maxDiff(a, b []float64) (d float64) {
	for i := range a {
		d = math.Max(d, math.Abs(a[i]-b[i]))
	}
	return
}

func TestMassAndDiffusion(t *testing.T) {
	for _, et := range []mesh.ElementType{mesh.Triangle, mesh.Quadrangle, mesh.Tetrahedron} {
		t.Run(et.String(), func(t *testing.T) {
			ls := lagrange(t, et, 2, 2, 2, 2)
			M := assemble2(t, ls, ls, NewScalarMassIntegrator(3))
			var total float64
			r, c := M.Dims()
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					total += M.At(i, j)
				}
			}
			assert.InDelta(t, 1.0, total, tol)
			assert.True(t, mat.EqualApprox(M, M.T(), 1e-14))

			K := assemble2(t, ls, ls, NewScalarDiffusionIntegrator(3))
			var ones mat.VecDense
			ones.MulVec(K, mat.NewVecDense(r, utils.ConstArray(r, 1)))
			assert.InDelta(t, 0, mat.Norm(&ones, math.Inf(1)), tol)
		})
	}
}

func TestLinearity(t *testing.T) {
	ls := lagrange(t, mesh.Triangle, 2, 3, 2)
	var (
		m    = ls.Mesh()
		mass = NewScalarMassIntegrator(3)
		diff = NewScalarDiffusionIntegrator(3)
		M    = assemble2(t, ls, ls, mass)
		K    = assemble2(t, ls, ls, diff)
	)
	var want mat.Dense
	want.Add(M, K)
	assert.True(t, mat.EqualApprox(&want, assemble2(t, ls, ls, mass, diff), tol))

	want.Scale(2, M)
	assert.True(t, mat.EqualApprox(&want, assemble2(t, ls, ls, mass.WithCoef(ConstantCoef(2))), tol))
	assert.Equal(t, 1.0, mass.Coef.Value, "WithCoef must not touch the receiver")

	fc := mass.WithCoef(FuncCoef(func(x []float64) float64 { return 2 }))
	assert.True(t, mat.EqualApprox(&want, assemble2(t, ls, ls, fc), tol))

	rule := m.QuadratureFormula(3)
	vals := utils.NewTensor([]int{m.NumberOfCells(), rule.NumberOfPoints()})
	for i := range vals.Data {
		vals.Data[i] = 2
	}
	assert.True(t, mat.EqualApprox(&want, assemble2(t, ls, ls, mass.WithCoef(ValuesCoef(vals))), tol))

	// COO and CSR agree
	A, err := NewBilinearForm(ls, ls).AddIntegrator(mass).Assembly(utils.COOFormat)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(M, dense(t, A), tol))

	// load vectors are linear in the source
	f := func(x []float64) float64 { return x[0] + 3*x[1] }
	F1, err := NewLinearForm(ls).AddIntegrator(NewSourceIntegrator(FuncCoef(f), 3)).Assembly()
	require.NoError(t, err)
	F2, err := NewLinearForm(ls).AddIntegrator(
		NewSourceIntegrator(FuncCoef(f), 3), NewSourceIntegrator(FuncCoef(f), 3)).Assembly()
	require.NoError(t, err)
	for i := range F1 {
		assert.InDelta(t, 2*F1[i], F2[i], tol)
	}
	// the load of an interpolated function is its mass matrix product
	var MF mat.VecDense
	MF.MulVec(M, mat.NewVecDense(len(F1), ls.Interpolate(f)))
	assert.InDelta(t, 0, maxDiff(MF.RawVector().Data, F1), tol)

	_, err = NewBilinearForm(ls, ls).Assembly(utils.CSRFormat)
	assert.True(t, errors.Is(err, types.ErrUnsupportedOperation))
	_, err = NewBilinearForm(ls, ls).AddIntegrator(mass.WithCoef(ValuesCoef(utils.NewTensor([]int{1, 1})))).
		Assembly(utils.CSRFormat)
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
}

func TestConvection(t *testing.T) {
	ls := lagrange(t, mesh.Quadrangle, 2, 2, 3)
	C := assemble2(t, ls, ls, NewScalarConvectionIntegrator(ConstantVectorCoef(1, 0), 3))
	M := assemble2(t, ls, ls, NewScalarMassIntegrator(3))
	n := ls.NumberOfGlobalDofs()
	var cx, m1 mat.VecDense
	cx.MulVec(C, mat.NewVecDense(n, ls.Interpolate(func(x []float64) float64 { return x[0] })))
	m1.MulVec(M, mat.NewVecDense(n, utils.ConstArray(n, 1)))
	assert.InDelta(t, 0, maxDiff(cx.RawVector().Data, m1.RawVector().Data), tol)

	_, err := NewBilinearForm(ls, ls).AddIntegrator(NewScalarConvectionIntegrator(ConstantVectorCoef(1), 3)).
		Assembly(utils.CSRFormat)
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
}

func TestPoisson(t *testing.T) {
	u := func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] - x[0]*x[1] }
	for _, et := range []mesh.ElementType{mesh.Triangle, mesh.Quadrangle} {
		t.Run(et.String(), func(t *testing.T) {
			ls := lagrange(t, et, 2, 3, 3)
			A, err := NewBilinearForm(ls, ls).AddIntegrator(NewScalarDiffusionIntegrator(3)).Assembly(utils.CSRFormat)
			require.NoError(t, err)
			F, err := NewLinearForm(ls).AddIntegrator(NewSourceIntegrator(ConstantCoef(-4), 3)).Assembly()
			require.NoError(t, err)
			bc, err := NewDirichletBC(BCBlock{Space: ls, Gd: space.ScalarFunction(u).Vector()})
			require.NoError(t, err)
			Ac, Fc, err := bc.Apply(A, F)
			require.NoError(t, err)
			uh := solveDense(t, Ac, Fc)
			assert.InDelta(t, 0, maxDiff(uh, ls.Interpolate(u)), tol)
		})
	}
}

func TestNeumann(t *testing.T) {
	var (
		u     = func(x []float64) float64 { return x[0]*x[0] + x[1] }
		right = func(x []float64) bool { return x[0] > 1-utils.NODETOL }
		rest  = func(x []float64) bool { return !right(x) }
		flux  = func(x, n []float64) []float64 { return []float64{2*x[0]*n[0] + n[1]} }
	)
	ls := lagrange(t, mesh.Quadrangle, 2, 2, 2)
	A, err := NewBilinearForm(ls, ls).AddIntegrator(NewScalarDiffusionIntegrator(3)).Assembly(utils.CSRFormat)
	require.NoError(t, err)
	F, err := NewLinearForm(ls).AddIntegrator(
		NewSourceIntegrator(ConstantCoef(-2), 3),
		NewBoundaryFaceSourceIntegrator(flux, right, 3),
	).Assembly()
	require.NoError(t, err)
	bc, err := NewDirichletBC(BCBlock{Space: ls, Gd: space.ScalarFunction(u).Vector(), Threshold: rest})
	require.NoError(t, err)
	Ac, Fc, err := bc.Apply(A, F)
	require.NoError(t, err)
	assert.InDelta(t, 0, maxDiff(solveDense(t, Ac, Fc), ls.Interpolate(u)), tol)
}

func TestDirichletBC(t *testing.T) {
	ls := lagrange(t, mesh.Triangle, 2, 2, 2)
	A, err := NewBilinearForm(ls, ls).AddIntegrator(NewScalarDiffusionIntegrator(3)).Assembly(utils.CSRFormat)
	require.NoError(t, err)
	F, err := NewLinearForm(ls).AddIntegrator(NewSourceIntegrator(ConstantCoef(1), 3)).Assembly()
	require.NoError(t, err)
	gd := func(x []float64) []float64 { return []float64{1 + x[0]} }
	bc, err := NewDirichletBC(BCBlock{Space: ls, Gd: gd})
	require.NoError(t, err)
	assert.Equal(t, 16, bc.NumberOfBoundaryDofs())
	for _, i := range bc.BoundaryDofs() {
		assert.True(t, bc.IsBoundaryDof()[i])
		assert.InDelta(t, 1+ls.InterpolationPoints()[i][0], bc.BoundaryValues()[i], 1e-14)
	}

	A1, F1, err := bc.Apply(A, F)
	require.NoError(t, err)
	A2, F2, err := bc.Apply(A1, F1)
	require.NoError(t, err)
	assert.True(t, mat.Equal(A1.ToDense(), A2.ToDense()))
	assert.InDelta(t, 0, maxDiff(F1, F2), 1e-14)

	ip := ls.InterpolationPoints()
	for i, b := range bc.IsBoundaryDof() {
		if b {
			assert.Equal(t, 1.0, A1.At(i, i))
			assert.InDelta(t, 1+ip[i][0], F1[i], 1e-14)
			for j := range bc.IsBoundaryDof() {
				if j != i {
					assert.Zero(t, A1.At(i, j))
					assert.Zero(t, A1.At(j, i))
				}
			}
		} else {
			assert.Zero(t, bc.BoundaryValues()[i])
		}
	}

	// in place agrees with the copy
	Ain := A.ToCSR().Copy()
	require.NoError(t, bc.ApplyMatrixInPlace(Ain))
	assert.True(t, mat.EqualApprox(A1.ToDense(), Ain.ToDense(), 1e-14))

	// a pattern without the boundary diagonal cannot be constrained in place
	T := utils.NewTriplets(A.Dims())
	A.DoNonZero(func(i, j int, v float64) {
		if i != j {
			T.Add(i, j, v)
		}
	})
	assert.Error(t, bc.ApplyMatrixInPlace(T.ToCSR()))
	Aout, err := bc.ApplyMatrix(T.ToCSR())
	require.NoError(t, err)
	for i, b := range bc.IsBoundaryDof() {
		if b {
			assert.Equal(t, 1.0, Aout.At(i, i))
		}
	}

	_, err = bc.ApplyVector(F[:3], A)
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
}

func TestHexElasticity(t *testing.T) {
	material := LinearElasticMaterial{Lambda: 1, Mu: 1, Hypothesis: ThreeD}
	cases := []struct {
		name string
		p    int
		u    space.VectorFunction
		f    []float64
	}{
		{"affine", 1, func(x []float64) []float64 {
			return []float64{0.1 + x[0] + 2*x[1], -x[2] + 0.5*x[0], 3*x[1] - x[2]}
		}, []float64{0, 0, 0}},
		// div sigma = (2 lambda + 4 mu) (1, 1, 1)
		{"quadratic", 2, func(x []float64) []float64 {
			return []float64{x[0] * x[0], x[1] * x[1], x[2] * x[2]}
		}, []float64{-6, -6, -6}},
	}
	for _, tc := range cases {
		for _, ordering := range []space.DofOrdering{space.DofMajor, space.ComponentMajor} {
			t.Run(tc.name+"/"+ordering.String(), func(t *testing.T) {
				ls := lagrange(t, mesh.Hexahedron, tc.p, 2, 2, 2)
				ts := space.NewTensorFunctionSpace(ls, ordering)
				A, err := NewBilinearForm(ts, ts).AddIntegrator(NewLinearElasticIntegrator(material, 3)).
					Assembly(utils.CSRFormat)
				require.NoError(t, err)
				F, err := NewLinearForm(ts).AddIntegrator(
					NewVectorSourceIntegrator(ConstantVectorCoef(tc.f...), 3)).Assembly()
				require.NoError(t, err)
				bc, err := NewDirichletBC(BCBlock{Space: ts, Gd: tc.u})
				require.NoError(t, err)
				Ac, Fc, err := bc.Apply(A, F)
				require.NoError(t, err)
				assert.InDelta(t, 0, maxDiff(solveDense(t, Ac, Fc), ts.Interpolate(tc.u)), tol)
			})
		}
	}
}

func TestPlaneElasticityTraction(t *testing.T) {
	var (
		material = NewLinearElasticMaterial(10, 0.3, PlaneStress)
		grad     = []float64{1, 2, -0.5, 0.25}
		u        = func(x []float64) []float64 {
			return []float64{grad[0]*x[0] + grad[1]*x[1], grad[2]*x[0] + grad[3]*x[1]}
		}
		sigma    = material.Stress(grad, 2)
		traction = func(x, n []float64) []float64 {
			return []float64{sigma[0]*n[0] + sigma[1]*n[1], sigma[2]*n[0] + sigma[3]*n[1]}
		}
		top  = func(x []float64) bool { return x[1] > 1-utils.NODETOL }
		rest = func(x []float64) bool { return !top(x) }
	)
	ls := lagrange(t, mesh.Triangle, 1, 3, 3)
	ts := space.NewTensorFunctionSpace(ls, space.ComponentMajor)
	A, err := NewBilinearForm(ts, ts).AddIntegrator(NewLinearElasticIntegrator(material, 2)).Assembly(utils.CSRFormat)
	require.NoError(t, err)
	F, err := NewLinearForm(ts).AddIntegrator(NewBoundaryFaceSourceIntegrator(traction, top, 2)).Assembly()
	require.NoError(t, err)
	bc, err := NewDirichletBC(BCBlock{Space: ts, Gd: u, Threshold: rest})
	require.NoError(t, err)
	Ac, Fc, err := bc.Apply(A, F)
	require.NoError(t, err)
	assert.InDelta(t, 0, maxDiff(solveDense(t, Ac, Fc), ts.Interpolate(u)), tol)

	_, err = NewBilinearForm(ts, ts).AddIntegrator(
		NewLinearElasticIntegrator(LinearElasticMaterial{Lambda: 1, Mu: 1}, 2)).Assembly(utils.CSRFormat)
	assert.True(t, errors.Is(err, types.ErrUnsupportedDimension))
	_, err = NewBilinearForm(ls, ls).AddIntegrator(NewLinearElasticIntegrator(material, 2)).Assembly(utils.CSRFormat)
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
}

func TestStokesTaylorHood(t *testing.T) {
	var (
		u = func(x []float64) []float64 { return []float64{x[0] * x[0], -2 * x[0] * x[1]} }
		p = func(x []float64) []float64 { return []float64{x[0] + x[1]} }
		// -lap u + grad p
		f    = ConstantVectorCoef(-1, 1)
		left = func(x []float64) bool { return x[0] < utils.NODETOL }
	)
	m, err := mesh.NewBoxMesh(mesh.Triangle, nil, 4, 4)
	require.NoError(t, err)
	s2, err := space.NewLagrangeFESpace(m, 2, true)
	require.NoError(t, err)
	pspace, err := space.NewLagrangeFESpace(m, 1, true)
	require.NoError(t, err)
	uspace := space.NewTensorFunctionSpace(s2, space.DofMajor)

	A00 := NewBilinearForm(uspace, uspace).AddIntegrator(NewScalarDiffusionIntegrator(3))
	A01 := NewBilinearForm(pspace, uspace).AddIntegrator(NewPressWorkIntegrator(3).WithCoef(ConstantCoef(-1)))
	rows, cols := A01.Shape()
	assert.Equal(t, []int{uspace.NumberOfGlobalDofs(), pspace.NumberOfGlobalDofs()}, []int{rows, cols})

	block, err := NewBlockForm([][]Form{{A00, A01}, {A01.T(), nil}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, uspace.NumberOfGlobalDofs(), uspace.NumberOfGlobalDofs() + pspace.NumberOfGlobalDofs()},
		block.Offsets())
	A, err := block.Assembly(utils.CSRFormat)
	require.NoError(t, err)

	// the transposed block is the transpose of the coupling block
	B, err := A01.Assembly(utils.CSRFormat)
	require.NoError(t, err)
	BT, err := A01.T().Assembly(utils.CSRFormat)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(dense(t, B).T(), dense(t, BT), 1e-14))

	F, err := NewLinearBlockForm(
		NewLinearForm(uspace).AddIntegrator(NewVectorSourceIntegrator(f, 3)),
		NewLinearForm(pspace),
	).Assembly()
	require.NoError(t, err)

	bc, err := NewDirichletBC(
		BCBlock{Space: uspace, Gd: u},
		BCBlock{Space: pspace, Gd: p, Threshold: left},
	)
	require.NoError(t, err)
	Ac, Fc, err := bc.Apply(A, F)
	require.NoError(t, err)
	x := solveDense(t, Ac, Fc)
	nu := uspace.NumberOfGlobalDofs()
	assert.InDelta(t, 0, maxDiff(x[:nu], uspace.Interpolate(u)), 1e-9)
	assert.InDelta(t, 0, maxDiff(x[nu:], pspace.Interpolate(func(x []float64) float64 { return p(x)[0] })), 1e-9)

	_, err = NewBlockForm([][]Form{{A00, nil}, {nil, nil}})
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
	_, err = NewBlockForm([][]Form{{A00, A01}, {A01, nil}})
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
}

func TestBDMProjection(t *testing.T) {
	m, err := mesh.NewBoxMesh(mesh.Triangle, nil, 3, 2)
	require.NoError(t, err)
	bs, err := space.NewBDMFESpace(m)
	require.NoError(t, err)
	f := func(x []float64) []float64 { return []float64{1 + x[0] - x[1], 2*x[1] + 0.5*x[0]} }
	A, err := NewBilinearForm(bs, bs).AddIntegrator(NewScalarMassIntegrator(3)).Assembly(utils.CSRFormat)
	require.NoError(t, err)
	F, err := NewLinearForm(bs).AddIntegrator(NewVectorSourceIntegrator(FuncVectorCoef(f), 3)).Assembly()
	require.NoError(t, err)
	assert.InDelta(t, 0, maxDiff(solveDense(t, A, F), bs.Interpolate(f)), tol)

	_, err = NewLinearForm(bs).AddIntegrator(NewSourceIntegrator(ConstantCoef(1), 3)).Assembly()
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
	_, err = NewLinearForm(bs).AddIntegrator(NewBoundaryFaceSourceIntegrator(
		func(x, n []float64) []float64 { return n }, nil, 2)).Assembly()
	assert.True(t, errors.Is(err, types.ErrUnsupportedOperation))
}
