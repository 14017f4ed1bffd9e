/*
Package model_problems holds manufactured-solution problems assembled from the fem package. Each
problem solves on a caller supplied mesh and reports the discretization error against its exact
solution, which is what the CLI records for convergence studies.
*/
package model_problems

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/solver"
	"github.com/notargets/gofea/space"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

type Config struct {
	Mesh           *mesh.Mesh
	Kind           space.Kind
	P              int // polynomial order
	Q              int // quadrature points per direction, <= 0 picks P+2
	Lambda, Mu     float64
	Ordering       space.DofOrdering
	Solver         solver.Method
	Tolerance      float64
	MaxIterations  int
	NewtonSteps    int // cap on Newton steps for nonlinear problems, <= 0 allows 20
	ParallelDegree int
	Dump           string                  // directory for text dumps of the assembled systems, empty for none
	BCs            map[string]types.BCFLAG // condition per unit box face name, nil keeps the problem's default
	Logger         *log.Logger
}

func (cfg *Config) quadrature() int {
	if cfg.Q > 0 {
		return cfg.Q
	}
	return cfg.P + 2
}

func (cfg *Config) logf(format string, args ...any) {
	if cfg.Logger != nil {
		cfg.Logger.Printf(format, args...)
	}
}

type Result struct {
	Problem    string
	NDof       int
	H          float64
	L2Error    float64
	Iterations int
	Updates    []float64 // max norm of each Newton update, nonlinear problems only
	Solution   []float64
}

type Problem interface {
	Name() string
	// Check reports whether the problem can run on m
	Check(m *mesh.Mesh) error
	Solve(ctx context.Context, cfg Config) (*Result, error)
}

type Factory func() Problem

var registry = map[string]Factory{}

func register(f Factory) { registry[strings.ToLower(f().Name())] = f }

func init() {
	register(func() Problem { return Poisson{} })
	register(func() Problem { return Elasticity3D{} })
	register(func() Problem { return Stokes2D{} })
	register(func() Problem { return Semilinear{} })
}

func New(name string) (Problem, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("model problem %q, have %v: %w", name, Names(), types.ErrUnsupportedOperation)
	}
	return f(), nil
}

func Names() (names []string) {
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// MeshSize is the largest cell diameter estimate, measure^(1/TD).
func MeshSize(m *mesh.Mesh) (h float64, err error) {
	var measure []float64
	if measure, err = m.CellMeasure(); err != nil {
		return
	}
	for _, v := range measure {
		h = math.Max(h, math.Pow(v, 1/float64(m.TD)))
	}
	return
}

func newResult(name string, m *mesh.Mesh, ndof int) (r *Result, err error) {
	r = &Result{Problem: name, NDof: ndof}
	r.H, err = MeshSize(m)
	return
}

func (cfg *Config) solve(name string, A utils.SparseMatrix, F []float64) (x []float64, err error) {
	if err = cfg.dump(name, A, F); err != nil {
		return
	}
	nr, _ := A.Dims()
	cfg.logf("%s: solving %d unknowns, %d nonzeros (%v), %s", name, nr, A.NNZ(), cfg.Solver, utils.GetMemUsage())
	return solver.Solve(cfg.Solver, A, F, cfg.Tolerance, cfg.MaxIterations)
}

func (cfg *Config) dump(name string, A utils.SparseMatrix, F []float64) (err error) {
	if len(cfg.Dump) == 0 {
		return
	}
	if err = os.MkdirAll(cfg.Dump, 0755); err != nil {
		return
	}
	base := filepath.Join(cfg.Dump, name)
	if err = utils.SaveMatrix(base+"_A.txt", A); err != nil {
		return
	}
	if err = utils.SaveArray(base+"_F.txt", utils.NewTensor([]int{len(F)}, F)); err != nil {
		return
	}
	cfg.logf("%s: system written to %s_{A,F}.txt", name, base)
	return
}

func checkUnitBox(m *mesh.Mesh) error {
	for _, x := range m.Nodes {
		for _, v := range x {
			if v < -utils.NODETOL || v > 1+utils.NODETOL {
				return fmt.Errorf("node %v outside of the unit box: %w", x, types.ErrShapeMismatch)
			}
		}
	}
	return nil
}

func onFace(d int, v float64) mesh.Threshold {
	return func(x []float64) bool { return math.Abs(x[d]-v) < utils.NODETOL }
}

var boxFaces = []string{"xmin", "xmax", "ymin", "ymax", "zmin", "zmax"}

/*
boxBoundary is the union of the unit box faces whose condition is flag. Unnamed faces take def.
Naming a face the mesh does not have is an error.
*/
func boxBoundary(bcs map[string]types.BCFLAG, TD int, flag, def types.BCFLAG) (th mesh.Threshold, n int, err error) {
	byFace := make([]types.BCFLAG, 2*TD)
	for k := range byFace {
		byFace[k] = def
	}
	for name, bf := range bcs {
		k := -1
		for i, f := range boxFaces {
			if f == strings.ToLower(strings.TrimSpace(name)) {
				k = i
			}
		}
		if k < 0 || k >= 2*TD {
			err = fmt.Errorf("face %q of a %dD box: %w", name, TD, types.ErrShapeMismatch)
			return
		}
		byFace[k] = bf
	}
	var faces []mesh.Threshold
	for k, bf := range byFace {
		if bf == flag {
			faces = append(faces, onFace(k/2, float64(k%2)))
		}
	}
	th = func(x []float64) bool {
		for _, f := range faces {
			if f(x) {
				return true
			}
		}
		return false
	}
	return th, len(faces), nil
}

func not(th mesh.Threshold) mesh.Threshold {
	return func(x []float64) bool { return !th(x) }
}
