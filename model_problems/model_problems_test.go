package model_problems

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/results"
	"github.com/notargets/gofea/solver"
	"github.com/notargets/gofea/space"
	"github.com/notargets/gofea/types"
)

func boxConfig(t *testing.T, et mesh.ElementType, p int, n ...int) Config {
	m, err := mesh.NewBoxMesh(et, nil, n...)
	require.NoError(t, err)
	return Config{Mesh: m, P: p, Lambda: 1, Mu: 1, Tolerance: 1e-12, MaxIterations: 1000}
}

// orders solves pb on a sequence of refined box meshes and returns the observed L2 orders.
func orders(t *testing.T, pb Problem, et mesh.ElementType, p int, ns ...int) []float64 {
	var runs []results.Run
	for _, n := range ns {
		r, err := pb.Solve(context.Background(), boxConfig(t, et, p, n, n, n))
		require.NoError(t, err)
		runs = append(runs, results.Run{H: r.H, L2Error: r.L2Error})
	}
	return results.ConvergenceOrders(runs)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"elasticity3d", "poisson", "semilinear", "stokes2d"}, Names())
	pb, err := New(" Poisson ")
	require.NoError(t, err)
	assert.Equal(t, "poisson", pb.Name())
	_, err = New("navier-stokes")
	assert.True(t, errors.Is(err, types.ErrUnsupportedOperation))
}

func TestPoisson(t *testing.T) {
	for _, tc := range []struct {
		et    mesh.ElementType
		p     int
		order float64
	}{
		{mesh.Interval, 2, 3},
		{mesh.Triangle, 1, 2},
		{mesh.Quadrangle, 2, 3},
	} {
		t.Run(tc.et.String(), func(t *testing.T) {
			for _, order := range orders(t, Poisson{}, tc.et, tc.p, 4, 8) {
				assert.InDelta(t, tc.order, order, 0.3)
			}
		})
	}
	t.Run("cg", func(t *testing.T) {
		cfg := boxConfig(t, mesh.Triangle, 2, 4, 4)
		direct, err := Poisson{}.Solve(context.Background(), cfg)
		require.NoError(t, err)
		cfg.Solver = solver.CGMethod
		// eliminated boundary rows and columns keep the system symmetric positive definite
		iter, err := Poisson{}.Solve(context.Background(), cfg)
		require.NoError(t, err)
		assert.InDeltaSlice(t, direct.Solution, iter.Solution, 1e-8)
	})
	t.Run("bernstein", func(t *testing.T) {
		cfg := boxConfig(t, mesh.Triangle, 2, 4, 4)
		lagrange, err := Poisson{}.Solve(context.Background(), cfg)
		require.NoError(t, err)
		cfg.Kind = space.Bernstein
		bernstein, err := Poisson{}.Solve(context.Background(), cfg)
		require.NoError(t, err)
		assert.InDelta(t, lagrange.L2Error, bernstein.L2Error, 1e-6)
	})
	t.Run("bcs", func(t *testing.T) {
		cfg := boxConfig(t, mesh.Triangle, 2, 4, 4)
		def, err := Poisson{}.Solve(context.Background(), cfg)
		require.NoError(t, err)
		cfg.BCs = map[string]types.BCFLAG{"xmin": types.BC_Neumann, "YMAX": types.BC_Neumann, "xmax": types.BC_Dirichlet}
		mixed, err := Poisson{}.Solve(context.Background(), cfg)
		require.NoError(t, err)
		assert.Less(t, mixed.L2Error, 5*def.L2Error)

		for _, bcs := range []map[string]types.BCFLAG{
			{"xmin": types.BC_Neumann, "xmax": types.BC_Neumann, "ymin": types.BC_Neumann, "ymax": types.BC_Neumann},
			{"zmin": types.BC_Dirichlet},
			{"left": types.BC_Dirichlet},
			{"xmin": types.BC_None},
		} {
			cfg.BCs = bcs
			_, err = Poisson{}.Solve(context.Background(), cfg)
			assert.Error(t, err, "%v", bcs)
		}
	})
}

func TestElasticity3D(t *testing.T) {
	var errs []float64
	for _, ordering := range []space.DofOrdering{space.DofMajor, space.ComponentMajor} {
		cfg := boxConfig(t, mesh.Hexahedron, 1, 2, 2, 2)
		cfg.Ordering = ordering
		r, err := Elasticity3D{}.Solve(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, 81, r.NDof)
		errs = append(errs, r.L2Error)
	}
	assert.InDelta(t, errs[0], errs[1], 1e-12)

	for _, order := range orders(t, Elasticity3D{}, mesh.Hexahedron, 1, 2, 4) {
		assert.Greater(t, order, 0.0)
	}

	_, err := Elasticity3D{}.Solve(context.Background(), boxConfig(t, mesh.Triangle, 1, 2, 2))
	assert.True(t, errors.Is(err, types.ErrUnsupportedDimension))
}

func TestStokes2D(t *testing.T) {
	for _, order := range orders(t, Stokes2D{}, mesh.Triangle, 1, 4, 8) {
		assert.Greater(t, order, 2.0)
	}
	cfg := boxConfig(t, mesh.Quadrangle, 1, 4, 4)
	cfg.Solver = solver.CGMethod
	r, err := Stokes2D{}.Solve(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2*81+25, r.NDof)
	assert.Less(t, r.L2Error, 0.5)
}

func TestSemilinear(t *testing.T) {
	r, err := Semilinear{}.Solve(context.Background(), boxConfig(t, mesh.Triangle, 2, 4, 4))
	require.NoError(t, err)
	assert.Less(t, r.Iterations, 10)
	require.Len(t, r.Updates, r.Iterations)
	assert.LessOrEqual(t, r.Updates[len(r.Updates)-1], 1e-12)
	// quadratic convergence once the iterate is close
	for k := 1; k+1 < len(r.Updates); k++ {
		if r.Updates[k] < 1e-2 && r.Updates[k+1] > 1e-14 {
			assert.Less(t, r.Updates[k+1], 10*r.Updates[k]*r.Updates[k])
		}
	}
	assert.Less(t, r.L2Error, 1e-2)

	// running out of Newton steps is an error, not a silent result
	cfg := boxConfig(t, mesh.Triangle, 2, 4, 4)
	cfg.NewtonSteps = 2
	r, err = Semilinear{}.Solve(context.Background(), cfg)
	assert.True(t, errors.Is(err, solver.ErrNotConverged))
	assert.Nil(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Semilinear{}.Solve(ctx, boxConfig(t, mesh.Triangle, 1, 2, 2))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDump(t *testing.T) {
	cfg := boxConfig(t, mesh.Quadrangle, 1, 2, 2)
	cfg.Dump = t.TempDir()
	_, err := Poisson{}.Solve(context.Background(), cfg)
	require.NoError(t, err)
	for _, name := range []string{"poisson_A.txt", "poisson_F.txt"} {
		f, err := os.Open(filepath.Join(cfg.Dump, name))
		require.NoError(t, err)
		scanner := bufio.NewScanner(f)
		require.True(t, scanner.Scan())
		assert.Contains(t, scanner.Text(), "# Array shape: (")
		f.Close()
	}
}
