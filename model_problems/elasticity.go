package model_problems

import (
	"context"
	"fmt"

	"github.com/notargets/gofea/fem"
	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/space"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

/*
Elasticity3D is the polynomially loaded unit cube, clamped to the exact displacement on the
whole boundary. The displacement is divergence free, so the load is -mu lap u for any lambda.
*/
type Elasticity3D struct{}

func (Elasticity3D) Name() string { return "elasticity3d" }

func (Elasticity3D) Check(m *mesh.Mesh) error {
	if m.GD != 3 || m.TD != 3 {
		return fmt.Errorf("elasticity3d on a %dD mesh: %w", m.TD, types.ErrUnsupportedDimension)
	}
	return checkUnitBox(m)
}

// s(t) = (t - t^2)^2 and its derivative
func bump(t float64) float64  { return (t - t*t) * (t - t*t) }
func dbump(t float64) float64 { return 2*t*t*t - 3*t*t + t }

func (Elasticity3D) Solution(p []float64) []float64 {
	x, y, z := p[0], p[1], p[2]
	return []float64{
		200 * bump(x) * dbump(y) * dbump(z),
		-100 * bump(y) * dbump(x) * dbump(z),
		-100 * bump(z) * dbump(y) * dbump(x),
	}
}

func (Elasticity3D) Source(mu float64) func(p []float64) []float64 {
	return func(p []float64) []float64 {
		var (
			x, y, z    = p[0], p[1], p[2]
			xx, yy, zz = x*x - x, y*y - y, z*z - z
		)
		return []float64{
			-400 * mu * (2*y - 1) * (2*z - 1) * (3*xx*xx*(yy+zz) + (1-6*x+6*x*x)*yy*zz),
			200 * mu * (2*x - 1) * (2*z - 1) * (3*yy*yy*(xx+zz) + (1-6*y+6*y*y)*xx*zz),
			200 * mu * (2*x - 1) * (2*y - 1) * (3*zz*zz*(xx+yy) + (1-6*z+6*z*z)*xx*yy),
		}
	}
}

func (pb Elasticity3D) Solve(ctx context.Context, cfg Config) (r *Result, err error) {
	var (
		m  = cfg.Mesh
		q  = cfg.quadrature()
		s  space.ScalarSpace
		A  utils.SparseMatrix
		F  []float64
		bc *fem.DirichletBC
	)
	if err = pb.Check(m); err != nil {
		return
	}
	if s, err = space.New(cfg.Kind, m, cfg.P, true); err != nil {
		return
	}
	var (
		ts       = space.NewTensorFunctionSpace(s, cfg.Ordering)
		material = fem.LinearElasticMaterial{Lambda: cfg.Lambda, Mu: cfg.Mu, Hypothesis: fem.ThreeD}
	)
	bf := fem.NewBilinearForm(ts, ts).AddIntegrator(fem.NewLinearElasticIntegrator(material, q))
	bf.ParallelDegree = cfg.ParallelDegree
	if A, err = bf.Assembly(utils.CSRFormat); err != nil {
		return
	}
	lf := fem.NewLinearForm(ts).AddIntegrator(
		fem.NewVectorSourceIntegrator(fem.FuncVectorCoef(pb.Source(cfg.Mu)), q))
	lf.ParallelDegree = cfg.ParallelDegree
	if F, err = lf.Assembly(); err != nil {
		return
	}
	if bc, err = fem.NewDirichletBC(fem.BCBlock{Space: ts, Gd: pb.Solution}); err != nil {
		return
	}
	if A, F, err = bc.Apply(A, F); err != nil {
		return
	}
	if err = ctx.Err(); err != nil {
		return
	}
	if r, err = newResult(pb.Name(), m, ts.NumberOfGlobalDofs()); err != nil {
		return
	}
	if r.Solution, err = cfg.solve(pb.Name(), A, F); err != nil {
		return nil, fmt.Errorf("%s: %w", pb.Name(), err)
	}
	r.L2Error, err = ts.L2Error(pb.Solution, r.Solution, q)
	cfg.logf("%s: %d dofs (%v), h = %.4f, L2 error = %.4e", pb.Name(), r.NDof, cfg.Ordering, r.H, r.L2Error)
	return
}
