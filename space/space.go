package space

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/quadrature"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

type ScalarFunction func(x []float64) float64

type VectorFunction func(x []float64) []float64

// Vector wraps a scalar function as a one component vector function.
func (f ScalarFunction) Vector() VectorFunction {
	return func(x []float64) []float64 { return []float64{f(x)} }
}

/*
Space is what the assembly and boundary code needs from a trial or test space. Cell tensors
carry the component axis even for scalar spaces: CellBasis is (NC, NQ, ldof, ncomp) and
CellGradBasis is (NC, NQ, ldof, ncomp, GD).
*/
type Space interface {
	Mesh() *mesh.Mesh
	Components() int
	NumberOfLocalDofs() int
	NumberOfGlobalDofs() int
	CellToDof() [][]int
	IsBoundaryDof(threshold mesh.Threshold) ([]bool, error)
	BoundaryInterpolate(gd VectorFunction, uh []float64, threshold mesh.Threshold) ([]bool, error)
	CellBasis(rule *quadrature.Rule) (*utils.Tensor, error)
	CellGradBasis(rule *quadrature.Rule) (*utils.Tensor, error)
}

// ScalarSpace is a single component space that a TensorFunctionSpace can lift.
type ScalarSpace interface {
	Space
	Degree() int
	Basis(rule *quadrature.Rule) (*mat.Dense, error)
	EvaluateBasis(points [][]float64) (*mat.Dense, error)
	GradBasis(rule *quadrature.Rule) (*utils.Tensor, error)
	InterpolationPoints() [][]float64
	Interpolate(f ScalarFunction) []float64
}

type cacheKey struct {
	rule *quadrature.Rule
	what string
}

// tensorCache memoizes rule dependent tables. Rules are cached by the mesh, so the pointer is
// a stable key.
type tensorCache struct {
	mu      sync.Mutex
	entries map[cacheKey]any
}

func (tc *tensorCache) get(rule *quadrature.Rule, what string, build func() (any, error)) (v any, err error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.entries == nil {
		tc.entries = make(map[cacheKey]any)
	}
	key := cacheKey{rule, what}
	if v, ok := tc.entries[key]; ok {
		return v, nil
	}
	if v, err = build(); err != nil {
		return
	}
	tc.entries[key] = v
	return
}

// broadcast copies an (NQ, ldof) reference table to every cell, (NC, NQ, ldof, 1).
func broadcast(phi *mat.Dense, NC int) (B *utils.Tensor) {
	var (
		NQ, ldof = phi.Dims()
	)
	B = utils.NewTensor([]int{NC, NQ, ldof, 1})
	for c := 0; c < NC; c++ {
		slab := B.Slab(c)
		for q := 0; q < NQ; q++ {
			for l := 0; l < ldof; l++ {
				slab[q*ldof+l] = phi.At(q, l)
			}
		}
	}
	return
}

func checkCoefficients(s Space, uh []float64) error {
	if len(uh) != s.NumberOfGlobalDofs() {
		return fmt.Errorf("coefficient vector of length %d for %d dofs: %w",
			len(uh), s.NumberOfGlobalDofs(), types.ErrShapeMismatch)
	}
	return nil
}

// Value evaluates a finite element function at the rule points of every cell, (NC, NQ, ncomp).
func Value(s Space, uh []float64, rule *quadrature.Rule) (V *utils.Tensor, err error) {
	var B *utils.Tensor
	if err = checkCoefficients(s, uh); err != nil {
		return
	}
	if B, err = s.CellBasis(rule); err != nil {
		return
	}
	var (
		NC, NQ, ldof, nc = B.Shape[0], B.Shape[1], B.Shape[2], B.Shape[3]
		c2d              = s.CellToDof()
	)
	V = utils.NewTensor([]int{NC, NQ, nc})
	for c := 0; c < NC; c++ {
		var (
			bs = B.Slab(c)
			vs = V.Slab(c)
		)
		for q := 0; q < NQ; q++ {
			for l := 0; l < ldof; l++ {
				u := uh[c2d[c][l]]
				for k := 0; k < nc; k++ {
					vs[q*nc+k] += u * bs[(q*ldof+l)*nc+k]
				}
			}
		}
	}
	return
}

// GradValue evaluates the gradient of a finite element function, (NC, NQ, ncomp, GD).
func GradValue(s Space, uh []float64, rule *quadrature.Rule) (G *utils.Tensor, err error) {
	var B *utils.Tensor
	if err = checkCoefficients(s, uh); err != nil {
		return
	}
	if B, err = s.CellGradBasis(rule); err != nil {
		return
	}
	var (
		NC, NQ, ldof = B.Shape[0], B.Shape[1], B.Shape[2]
		n            = B.Shape[3] * B.Shape[4]
		c2d          = s.CellToDof()
	)
	G = utils.NewTensor([]int{NC, NQ, B.Shape[3], B.Shape[4]})
	for c := 0; c < NC; c++ {
		var (
			bs = B.Slab(c)
			gs = G.Slab(c)
		)
		for q := 0; q < NQ; q++ {
			for l := 0; l < ldof; l++ {
				u := uh[c2d[c][l]]
				for k := 0; k < n; k++ {
					gs[q*n+k] += u * bs[(q*ldof+l)*n+k]
				}
			}
		}
	}
	return
}

// L2Error integrates |u - uh|^2 with q points per direction and returns its square root.
func L2Error(s Space, u VectorFunction, uh []float64, q int) (e float64, err error) {
	var (
		m    = s.Mesh()
		rule = m.QuadratureFormula(q)
		V, W *utils.Tensor
	)
	if V, err = Value(s, uh, rule); err != nil {
		return
	}
	if W, err = m.QuadratureMeasure(rule); err != nil {
		return
	}
	var (
		X          = m.BCToPoint(rule)
		NC, NQ, nc = V.Shape[0], V.Shape[1], V.Shape[2]
	)
	for c := 0; c < NC; c++ {
		for iq := 0; iq < NQ; iq++ {
			x := X.Slab(c)[iq*m.GD : (iq+1)*m.GD]
			ux := u(x)
			for k := 0; k < nc; k++ {
				d := ux[k] - V.At(c, iq, k)
				e += W.At(c, iq) * d * d
			}
		}
	}
	return math.Sqrt(e), nil
}

// Kind tags the scalar space families of the registry
type Kind int

const (
	Lagrange Kind = iota
	Bernstein
)

func (k Kind) String() string {
	switch k {
	case Lagrange:
		return "Lagrange"
	case Bernstein:
		return "Bernstein"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func NewKind(label string) (k Kind, err error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "lagrange":
		return Lagrange, nil
	case "bernstein":
		return Bernstein, nil
	}
	err = fmt.Errorf("space kind %q: %w", label, types.ErrUnsupportedOperation)
	return
}

type Factory func(m *mesh.Mesh, p int, continuous bool) (ScalarSpace, error)

var factories = map[Kind]Factory{
	Lagrange: func(m *mesh.Mesh, p int, continuous bool) (ScalarSpace, error) {
		return NewLagrangeFESpace(m, p, continuous)
	},
	Bernstein: func(m *mesh.Mesh, p int, continuous bool) (ScalarSpace, error) {
		return NewBernsteinFESpace(m, p, continuous)
	},
}

// New builds a scalar space of the given kind.
func New(kind Kind, m *mesh.Mesh, p int, continuous bool) (ScalarSpace, error) {
	factory, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("space of kind %v: %w", kind, types.ErrUnsupportedOperation)
	}
	return factory(m, p, continuous)
}
