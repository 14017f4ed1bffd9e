package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/notargets/gofea/InputParameters"
	"github.com/notargets/gofea/results"
	"github.com/notargets/gofea/solver"
	"github.com/notargets/gofea/space"
	"github.com/notargets/gofea/types"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeshes(t *testing.T) {
	meshes, labels, err := Meshes(InputParameters.MeshParameters{Type: "Quadrangle", Elements: []int{2, 3}}, 3)
	require.NoError(t, err)
	require.Len(t, meshes, 3)
	assert.Equal(t, []string{"Quadrangle 2x3", "Quadrangle 4x6", "Quadrangle 8x12"}, labels)
	assert.Equal(t, 96, meshes[2].NumberOfCells())

	_, _, err = Meshes(InputParameters.MeshParameters{Type: "Pentagon"}, 1)
	assert.Error(t, err)
}

func TestRunSolve(t *testing.T) {
	var input InputParameters.InputParameters
	require.NoError(t, input.Parse([]byte(`
Title: cli
Problem: Poisson
Mesh:
  Type: Interval
  Elements: [4]
Space: Bernstein
PolynomialOrder: 2
Solver: cg
Tolerance: 1.e-12
Refinements: 2
BCs:
  xmin: Neumann
`)))
	cfg, err := NewConfig(&input, nil)
	require.NoError(t, err)
	assert.Equal(t, space.Bernstein, cfg.Kind)
	assert.Equal(t, solver.CGMethod, cfg.Solver)
	assert.Equal(t, 4, cfg.Q)
	assert.Equal(t, map[string]types.BCFLAG{"xmin": types.BC_Neumann}, cfg.BCs)

	dbFile := filepath.Join(t.TempDir(), "runs.db")
	viper.Set("db", dbFile)
	t.Cleanup(func() { viper.Set("db", "") })
	require.NoError(t, RunSolve(context.Background(), &input, newLogger()))

	store, err := results.Open(dbFile)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Runs(context.Background(), "poisson", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "Interval 4", runs[0].Mesh)
	assert.Equal(t, 9, runs[0].NDof)
	assert.Equal(t, "Interval 8", runs[1].Mesh)
	assert.InDelta(t, 3, results.ConvergenceOrders(runs)[0], 0.3)

	input.BCs["xmax"] = "periodic"
	_, err = NewConfig(&input, nil)
	assert.Error(t, err)

	input.Problem = "nope"
	assert.Error(t, RunSolve(context.Background(), &input, newLogger()))
}
