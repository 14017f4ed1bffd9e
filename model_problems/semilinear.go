package model_problems

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/gofea/fem"
	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/solver"
	"github.com/notargets/gofea/space"
	"github.com/notargets/gofea/utils"
)

const maxNewtonIterations = 20

/*
Semilinear solves -lap u + u^3 = f on the unit box, u = prod sin(pi x_d), with Newton's method.
Linearizing u^3 about the iterate w gives the linear problem
-lap u + 3 w^2 u = f + 2 w^3, so every step assembles a fresh mass term and source from the
values of w at the quadrature points.
*/
type Semilinear struct{}

func (Semilinear) Name() string { return "semilinear" }

func (Semilinear) Check(m *mesh.Mesh) error { return checkUnitBox(m) }

func (Semilinear) Solution(x []float64) float64 {
	u := 1.
	for _, v := range x {
		u *= math.Sin(math.Pi * v)
	}
	return u
}

func (pb Semilinear) Source(x []float64) float64 {
	u := pb.Solution(x)
	return float64(len(x))*math.Pi*math.Pi*u + u*u*u
}

// linearization returns the mass and source coefficients at w, both (NC, NQ).
func (pb Semilinear) linearization(m *mesh.Mesh, s space.Space, w []float64, q int) (mass, src *utils.Tensor, err error) {
	var (
		rule = m.QuadratureFormula(q)
		X    = m.BCToPoint(rule)
		W    *utils.Tensor
	)
	if W, err = space.Value(s, w, rule); err != nil {
		return
	}
	var (
		NC, NQ = W.Shape[0], W.Shape[1]
	)
	mass = utils.NewTensor([]int{NC, NQ})
	src = utils.NewTensor([]int{NC, NQ})
	for c := 0; c < NC; c++ {
		for iq := 0; iq < NQ; iq++ {
			var (
				wq = W.At(c, iq, 0)
				x  = X.Slab(c)[iq*m.GD : (iq+1)*m.GD]
			)
			mass.Set(3*wq*wq, c, iq)
			src.Set(pb.Source(x)+2*wq*wq*wq, c, iq)
		}
	}
	return
}

func (pb Semilinear) Solve(ctx context.Context, cfg Config) (r *Result, err error) {
	var (
		m  = cfg.Mesh
		q  = cfg.quadrature()
		s  space.ScalarSpace
		bc *fem.DirichletBC
	)
	if err = pb.Check(m); err != nil {
		return
	}
	if s, err = space.New(cfg.Kind, m, cfg.P, true); err != nil {
		return
	}
	if bc, err = fem.NewDirichletBC(fem.BCBlock{Space: s, Gd: space.ScalarFunction(pb.Solution).Vector()}); err != nil {
		return
	}
	if r, err = newResult(pb.Name(), m, s.NumberOfGlobalDofs()); err != nil {
		return
	}
	var (
		w      = make([]float64, s.NumberOfGlobalDofs())
		tol    = cfg.Tolerance
		steps  = cfg.NewtonSteps
		update = math.Inf(1)
	)
	if tol <= 0 {
		tol = 1e-10
	}
	if steps <= 0 {
		steps = maxNewtonIterations
	}
	diffusion := fem.NewScalarDiffusionIntegrator(q)
	for it := 1; it <= steps; it++ {
		if err = ctx.Err(); err != nil {
			return
		}
		var (
			mass, src *utils.Tensor
			A         utils.SparseMatrix
			F, u      []float64
		)
		if mass, src, err = pb.linearization(m, s, w, q); err != nil {
			return
		}
		bf := fem.NewBilinearForm(s, s).AddIntegrator(
			diffusion,
			fem.NewScalarMassIntegrator(q).WithCoef(fem.ValuesCoef(mass)),
		)
		bf.ParallelDegree = cfg.ParallelDegree
		if A, err = bf.Assembly(utils.CSRFormat); err != nil {
			return
		}
		lf := fem.NewLinearForm(s).AddIntegrator(fem.NewSourceIntegrator(fem.ValuesCoef(src), q))
		lf.ParallelDegree = cfg.ParallelDegree
		if F, err = lf.Assembly(); err != nil {
			return
		}
		if A, F, err = bc.Apply(A, F); err != nil {
			return
		}
		if u, err = cfg.solve(fmt.Sprintf("%s_%d", pb.Name(), it), A, F); err != nil {
			return nil, fmt.Errorf("%s, Newton step %d: %w", pb.Name(), it, err)
		}
		update = 0
		for i := range u {
			update = math.Max(update, math.Abs(u[i]-w[i]))
		}
		w = u
		r.Iterations = it
		r.Updates = append(r.Updates, update)
		cfg.logf("%s: Newton step %d, update = %.4e", pb.Name(), it, update)
		if update <= tol {
			break
		}
	}
	if update > tol {
		return nil, fmt.Errorf("%s: update %.3e after %d Newton steps: %w", pb.Name(), update, r.Iterations, solver.ErrNotConverged)
	}
	r.Solution = w
	r.L2Error, err = space.L2Error(s, space.ScalarFunction(pb.Solution).Vector(), w, q)
	cfg.logf("%s: %d dofs, h = %.4f, L2 error = %.4e after %d steps", pb.Name(), r.NDof, r.H, r.L2Error, r.Iterations)
	return
}
