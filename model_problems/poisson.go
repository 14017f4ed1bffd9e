package model_problems

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/gofea/fem"
	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/space"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

/*
Poisson solves -lap u = f on the unit box with u = prod sin(pi x_d) + x_0. Neumann faces carry
the flux grad u . n, the others the Dirichlet value. Without Config.BCs only xmax is Neumann.
*/
type Poisson struct{}

func (Poisson) Name() string { return "poisson" }

func (Poisson) Check(m *mesh.Mesh) error { return checkUnitBox(m) }

func (Poisson) Solution(x []float64) float64 {
	u := 1.
	for _, v := range x {
		u *= math.Sin(math.Pi * v)
	}
	return u + x[0]
}

func (Poisson) Gradient(x []float64) (g []float64) {
	g = make([]float64, len(x))
	for d := range x {
		g[d] = math.Pi * math.Cos(math.Pi*x[d])
		for e, v := range x {
			if e != d {
				g[d] *= math.Sin(math.Pi * v)
			}
		}
	}
	g[0] += 1
	return
}

func (pb Poisson) Source(x []float64) float64 {
	return float64(len(x)) * math.Pi * math.Pi * (pb.Solution(x) - x[0])
}

// neumannFaces needs at least one Dirichlet face, and every face either Dirichlet or Neumann.
func (pb Poisson) neumannFaces(bcs map[string]types.BCFLAG, TD int) (neumann mesh.Threshold, err error) {
	var nNeu, nDir int
	if neumann, nNeu, err = boxBoundary(bcs, TD, types.BC_Neumann, types.BC_Dirichlet); err != nil {
		return
	}
	if _, nDir, err = boxBoundary(bcs, TD, types.BC_Dirichlet, types.BC_Dirichlet); err != nil {
		return
	}
	switch {
	case nDir == 0:
		err = fmt.Errorf("%s without a Dirichlet face: %w", pb.Name(), types.ErrUnsupportedOperation)
	case nNeu+nDir != 2*TD:
		err = fmt.Errorf("%s supports only Dirichlet and Neumann faces: %w", pb.Name(), types.ErrUnsupportedOperation)
	}
	return
}

func (pb Poisson) Solve(ctx context.Context, cfg Config) (r *Result, err error) {
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
	bf := fem.NewBilinearForm(s, s).AddIntegrator(fem.NewScalarDiffusionIntegrator(q))
	bf.ParallelDegree = cfg.ParallelDegree
	if A, err = bf.Assembly(utils.CSRFormat); err != nil {
		return
	}
	var (
		neumann = onFace(0, 1)
		flux    = func(x, n []float64) []float64 { return []float64{utils.Dot(pb.Gradient(x), n)} }
	)
	if cfg.BCs != nil {
		if neumann, err = pb.neumannFaces(cfg.BCs, m.TD); err != nil {
			return
		}
	}
	lf := fem.NewLinearForm(s).AddIntegrator(
		fem.NewSourceIntegrator(fem.FuncCoef(pb.Source), q),
		fem.NewBoundaryFaceSourceIntegrator(flux, neumann, q),
	)
	lf.ParallelDegree = cfg.ParallelDegree
	if F, err = lf.Assembly(); err != nil {
		return
	}
	gd := space.ScalarFunction(pb.Solution).Vector()
	if bc, err = fem.NewDirichletBC(fem.BCBlock{Space: s, Gd: gd, Threshold: not(neumann)}); err != nil {
		return
	}
	if A, F, err = bc.Apply(A, F); err != nil {
		return
	}
	if err = ctx.Err(); err != nil {
		return
	}
	if r, err = newResult(pb.Name(), m, s.NumberOfGlobalDofs()); err != nil {
		return
	}
	if r.Solution, err = cfg.solve(pb.Name(), A, F); err != nil {
		return nil, fmt.Errorf("%s: %w", pb.Name(), err)
	}
	r.L2Error, err = space.L2Error(s, gd, r.Solution, q)
	cfg.logf("%s: %d dofs, h = %.4f, L2 error = %.4e", pb.Name(), r.NDof, r.H, r.L2Error)
	return
}
