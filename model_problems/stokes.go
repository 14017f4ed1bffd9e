package model_problems

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/gofea/fem"
	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/solver"
	"github.com/notargets/gofea/space"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

/*
Stokes2D solves -lap u + grad p = f, div u = 0 on the unit square with Taylor-Hood elements,
velocity of degree P+1 and pressure of degree P. The velocity vanishes on the boundary; the
pressure is fixed on the face x = 0.
*/
type Stokes2D struct{}

func (Stokes2D) Name() string { return "stokes2d" }

func (Stokes2D) Check(m *mesh.Mesh) error {
	if m.GD != 2 || m.TD != 2 {
		return fmt.Errorf("stokes2d on a %dD mesh: %w", m.TD, types.ErrUnsupportedDimension)
	}
	return checkUnitBox(m)
}

func (Stokes2D) Velocity(p []float64) []float64 {
	var (
		sx, sy = math.Sin(math.Pi * p[0]), math.Sin(math.Pi * p[1])
	)
	return []float64{
		math.Pi * sx * sx * math.Sin(2*math.Pi*p[1]),
		-math.Pi * math.Sin(2*math.Pi*p[0]) * sy * sy,
	}
}

func (Stokes2D) Pressure(p []float64) []float64 {
	return []float64{math.Cos(math.Pi*p[0]) * math.Cos(math.Pi*p[1])}
}

func (Stokes2D) Source(p []float64) []float64 {
	var (
		pi3    = math.Pi * math.Pi * math.Pi
		sx, sy = math.Sin(math.Pi * p[0]), math.Sin(math.Pi * p[1])
		cx, cy = math.Cos(math.Pi * p[0]), math.Cos(math.Pi * p[1])
	)
	return []float64{
		-2*pi3*math.Sin(2*math.Pi*p[1])*(1-4*sx*sx) - math.Pi*sx*cy,
		2*pi3*math.Sin(2*math.Pi*p[0])*(1-4*sy*sy) - math.Pi*cx*sy,
	}
}

// Split separates a block solution into velocity and pressure coefficients.
func (Stokes2D) Split(x []float64, nu int) (u, p []float64) { return x[:nu], x[nu:] }

func (pb Stokes2D) Solve(ctx context.Context, cfg Config) (r *Result, err error) {
	var (
		m      = cfg.Mesh
		q      = cfg.quadrature() + 1
		pp     = cfg.P
		s2     space.ScalarSpace
		pspace space.ScalarSpace
		A      utils.SparseMatrix
		F      []float64
		bc     *fem.DirichletBC
		block  *fem.BlockForm
	)
	if err = pb.Check(m); err != nil {
		return
	}
	if pp < 1 {
		pp = 1
	}
	if s2, err = space.New(cfg.Kind, m, pp+1, true); err != nil {
		return
	}
	if pspace, err = space.New(cfg.Kind, m, pp, true); err != nil {
		return
	}
	uspace := space.NewTensorFunctionSpace(s2, cfg.Ordering)

	A00 := fem.NewBilinearForm(uspace, uspace).AddIntegrator(fem.NewScalarDiffusionIntegrator(q))
	A01 := fem.NewBilinearForm(pspace, uspace).AddIntegrator(
		fem.NewPressWorkIntegrator(q).WithCoef(fem.ConstantCoef(-1)))
	A00.ParallelDegree, A01.ParallelDegree = cfg.ParallelDegree, cfg.ParallelDegree
	if block, err = fem.NewBlockForm([][]fem.Form{{A00, A01}, {A01.T(), nil}}); err != nil {
		return
	}
	if A, err = block.Assembly(utils.CSRFormat); err != nil {
		return
	}
	if F, err = fem.NewLinearBlockForm(
		fem.NewLinearForm(uspace).AddIntegrator(fem.NewVectorSourceIntegrator(fem.FuncVectorCoef(pb.Source), q)),
		fem.NewLinearForm(pspace),
	).Assembly(); err != nil {
		return
	}
	if bc, err = fem.NewDirichletBC(
		fem.BCBlock{Space: uspace, Gd: pb.Velocity},
		fem.BCBlock{Space: pspace, Gd: pb.Pressure, Threshold: onFace(0, 0)},
	); err != nil {
		return
	}
	if A, F, err = bc.Apply(A, F); err != nil {
		return
	}
	if err = ctx.Err(); err != nil {
		return
	}
	nu := uspace.NumberOfGlobalDofs()
	if r, err = newResult(pb.Name(), m, nu+pspace.NumberOfGlobalDofs()); err != nil {
		return
	}
	if cfg.Solver != solver.DirectMethod {
		cfg.logf("%s: the saddle point system is indefinite, using the direct solver", pb.Name())
		cfg.Solver = solver.DirectMethod
	}
	if r.Solution, err = cfg.solve(pb.Name(), A, F); err != nil {
		return nil, fmt.Errorf("%s: %w", pb.Name(), err)
	}
	uh, ph := pb.Split(r.Solution, nu)
	if r.L2Error, err = uspace.L2Error(pb.Velocity, uh, q); err != nil {
		return
	}
	var pErr float64
	if pErr, err = space.L2Error(pspace, pb.Pressure, ph, q); err != nil {
		return
	}
	cfg.logf("%s: %d dofs, h = %.4f, velocity L2 error = %.4e, pressure L2 error = %.4e",
		pb.Name(), r.NDof, r.H, r.L2Error, pErr)
	return
}
